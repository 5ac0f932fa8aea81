// Package pricecache holds raw upstream payloads for a fixed TTL so repeated
// quote and history requests within one tick do not re-hit rate-limited
// providers.
package pricecache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	fetchedAt time.Time
	value     V
}

// Cache is a keyed TTL store. It is safe for concurrent use. There is no
// size bound: key cardinality is one entry per symbol+length pair, so
// unbounded growth is accepted rather than paying for eviction.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
}

// New constructs a cache with the given TTL. A non-positive TTL disables
// caching entirely (Get always misses).
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{ttl: ttl, now: time.Now, items: make(map[string]entry[V])}
}

// Get returns the cached value for key if it was stored less than TTL ago.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry.
func (c *Cache[V]) Put(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.items[key] = entry[V]{fetchedAt: c.now(), value: value}
	c.mu.Unlock()
}
