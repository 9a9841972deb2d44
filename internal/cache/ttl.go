// Package cache provides a single-value envelope with an expiry, used for the
// progress-tree and statistics caches of the sync core.
package cache

import (
	"sync"
	"time"
)

// TTL holds at most one value and an expiry timestamp. It is safe for
// concurrent use; the caller supplies the current time so expiry follows the
// session clock.
type TTL[T any] struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   T
	expiry time.Time
	set    bool
}

// New returns an empty cache whose entries live for ttl.
func New[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{ttl: ttl}
}

// Get returns the cached value while now is before its expiry.
func (c *TTL[T]) Get(now time.Time) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set || !now.Before(c.expiry) {
		var zero T
		return zero, false
	}
	return c.data, true
}

// Stale returns the last stored value regardless of expiry or invalidation.
func (c *TTL[T]) Stale() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data, c.set || !c.expiry.IsZero()
}

// Set stores v with expiry now+ttl.
func (c *TTL[T]) Set(now time.Time, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = v
	c.expiry = now.Add(c.ttl)
	c.set = true
}

// Invalidate expires the entry immediately; Stale still returns it.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = false
}

// Expiry reports when the current entry expires; zero if never set.
func (c *TTL[T]) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}
