// Package cache provides the process-wide TTL caches shared by the
// data and search cascades.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Loader produces a fresh value for a TTLCache on miss or expiry.
type Loader[T any] func(ctx context.Context) (T, error)

// TTLCache caches one bulk upstream result (e.g., "all A-share spot
// rows") for a fixed TTL. Refreshes serialize: concurrent callers on a
// cold cache trigger exactly one upstream load. When the loader fails
// terminally, the zero value is cached for the remainder of the TTL to
// suppress thundering-herd retries.
type TTLCache[T any] struct {
	name    string
	ttl     time.Duration
	retries int
	loader  Loader[T]
	logger  arbor.ILogger

	mu        sync.Mutex
	value     T
	loadedAt  time.Time
	populated bool

	refreshMu sync.Mutex

	onLookup func(name string, hit bool)
}

// NewTTLCache creates a TTL cache. retries is the number of extra load
// attempts after the first failure (1-2 is typical).
func NewTTLCache[T any](name string, ttl time.Duration, retries int, loader Loader[T], logger arbor.ILogger) *TTLCache[T] {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	if retries < 0 {
		retries = 0
	}
	return &TTLCache[T]{
		name:    name,
		ttl:     ttl,
		retries: retries,
		loader:  loader,
		logger:  logger,
	}
}

// OnLookup registers a hit/miss callback for metrics. Must be set
// before the cache is shared across goroutines.
func (c *TTLCache[T]) OnLookup(fn func(name string, hit bool)) {
	c.onLookup = fn
}

func (c *TTLCache[T]) fresh() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated && time.Since(c.loadedAt) < c.ttl {
		return c.value, true
	}
	var zero T
	return zero, false
}

// Get returns the cached value, refreshing it first when stale. Only
// one refresh runs at a time; waiters reuse its result.
func (c *TTLCache[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(); ok {
		if c.onLookup != nil {
			c.onLookup(c.name, true)
		}
		return v, nil
	}
	if c.onLookup != nil {
		c.onLookup(c.name, false)
	}

	// Serialize the refresh. A waiter that blocked here re-checks
	// freshness: the winner has already populated the cache.
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if v, ok := c.fresh(); ok {
		return v, nil
	}

	var value T
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		value, err = c.loader(ctx)
		if err == nil {
			break
		}
		if c.logger != nil {
			c.logger.Warn().
				Str("cache", c.name).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Cache refresh attempt failed")
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	c.mu.Lock()
	if err != nil {
		// Negative caching: remember the empty result so every request
		// for the next TTL window does not hammer a failing upstream.
		var zero T
		c.value = zero
		if c.logger != nil {
			c.logger.Error().Str("cache", c.name).Err(err).Msg("Cache refresh failed, caching empty result")
		}
	} else {
		c.value = value
	}
	c.loadedAt = time.Now()
	c.populated = true
	v := c.value
	c.mu.Unlock()

	return v, err
}

// Invalidate drops the cached value so the next Get refreshes.
func (c *TTLCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.populated = false
}
