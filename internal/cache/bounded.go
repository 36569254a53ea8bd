package cache

import (
	"container/list"
	"sync"
	"time"
)

// BoundedCache is a keyed TTL cache with a hard size cap. Expired
// entries are dropped on access; when the cap is reached after an
// expiry sweep, the oldest insertions are evicted FIFO.
type BoundedCache[T any] struct {
	ttl time.Duration
	cap int

	mu      sync.Mutex
	entries map[string]*boundedEntry[T]
	order   *list.List // of string keys, insertion order
}

type boundedEntry[T any] struct {
	value    T
	storedAt time.Time
	elem     *list.Element
}

// NewBoundedCache creates a bounded TTL cache.
func NewBoundedCache[T any](ttl time.Duration, capacity int) *BoundedCache[T] {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if capacity <= 0 {
		capacity = 500
	}
	return &BoundedCache[T]{
		ttl:     ttl,
		cap:     capacity,
		entries: make(map[string]*boundedEntry[T]),
		order:   list.New(),
	}
}

// Get returns the cached value for key when present and fresh.
func (c *BoundedCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if time.Since(e.storedAt) >= c.ttl {
		c.removeLocked(key, e)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value, evicting expired then oldest entries as needed.
func (c *BoundedCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}

	if len(c.entries) >= c.cap {
		c.sweepExpiredLocked()
	}
	for len(c.entries) >= c.cap {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		oldKey := oldest.Value.(string)
		c.removeLocked(oldKey, c.entries[oldKey])
	}

	c.entries[key] = &boundedEntry[T]{
		value:    value,
		storedAt: time.Now(),
		elem:     c.order.PushBack(key),
	}
}

// Len returns the current entry count.
func (c *BoundedCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *BoundedCache[T]) sweepExpiredLocked() {
	for key, e := range c.entries {
		if time.Since(e.storedAt) >= c.ttl {
			c.removeLocked(key, e)
		}
	}
}

func (c *BoundedCache[T]) removeLocked(key string, e *boundedEntry[T]) {
	if e == nil {
		return
	}
	c.order.Remove(e.elem)
	delete(c.entries, key)
}
