// Package backoff computes jittered exponential delays for re-scheduling
// failed batch flushes.
package backoff

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// ExponentialPolicy doubles the delay per attempt up to a ceiling and stops
// after MaxAttempts.
type ExponentialPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Config tunes ExponentialPolicy. Zero values fall back to defaults
// (5 attempts, 1s base, 30s ceiling).
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// New builds a policy from cfg.
func New(cfg Config) *ExponentialPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &ExponentialPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

// Allow reports whether attempt (1-based count of consecutive failures) may
// be followed by another try.
func (p *ExponentialPolicy) Allow(attempt int) bool {
	return attempt < p.maxAttempts
}

// Backoff returns the wait before the next attempt: half the capped
// exponential delay plus up to the other half as jitter.
func (p *ExponentialPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
