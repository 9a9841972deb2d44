// Package beacon dispatches best-effort requests that must outlive their
// caller, such as the final progress flush on shutdown. Each send runs on a
// detached goroutine with its own deadline; callers never see the outcome.
package beacon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Dispatcher runs fire-and-forget sends. The zero value is not usable; build
// one with New.
type Dispatcher struct {
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
	sent    atomic.Int64
	failed  atomic.Int64
}

// New returns a Dispatcher whose sends are bounded by timeout (default 5s).
func New(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Send submits fn for a single attempt and returns immediately. The context
// passed to fn is detached from any caller so teardown cannot cancel it.
func (d *Dispatcher) Send(name string, fn func(ctx context.Context) error) {
	if d == nil || fn == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.failed.Add(1)
			d.logger.Warn("beacon send failed", zap.String("beacon", name), zap.Error(err))
			return
		}
		d.sent.Add(1)
		d.logger.Debug("beacon sent", zap.String("beacon", name))
	}()
}

// Wait blocks until every submitted send has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("beacon wait: %w", ctx.Err())
	}
}

// Stats returns how many sends succeeded and failed so far.
func (d *Dispatcher) Stats() (sent, failed int64) {
	return d.sent.Load(), d.failed.Load()
}
