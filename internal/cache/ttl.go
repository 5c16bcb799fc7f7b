// Package cache provides a small TTL memo for query results that are
// expensive relative to how often they change.
package cache

import (
	"sync"
	"time"
)

// TTL caches a single value of type T for a fixed duration. A zero
// value is not usable; use New.
type TTL[T any] struct {
	mu      sync.Mutex
	value   T
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// New returns a cache whose entries live for ttl.
func New[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value, or calls load and caches its result.
// Errors from load are returned without caching anything.
func (c *TTL[T]) Get(load func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Before(c.expires) {
		return c.value, nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.expires = c.now().Add(c.ttl)
	return v, nil
}

// Invalidate drops the cached value so the next Get reloads.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires = time.Time{}
}
