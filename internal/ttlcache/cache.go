// Package ttlcache implements a bounded, expiring key-value cache.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	insertedAt time.Time
}

// Cache is a fixed-TTL, fixed-capacity key-value store. Eviction on
// overflow is deterministic: the entry with the oldest insertion time goes
// first, ties broken by insertion order.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	order   []string // insertion order, oldest first
	entries map[string]entry[V]
}

// New creates a cache with the given TTL and maximum entry count.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if present and not expired. An expired
// entry is removed as a side effect of the lookup.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Since(e.insertedAt) > c.ttl {
		c.removeLocked(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set inserts or overwrites the value for key. Expired entries are swept
// first; if the cache is still at capacity, the oldest entry is evicted.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{value: value, insertedAt: time.Now()}
}

// Len returns the current number of live (non-swept) entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) sweepLocked() {
	if len(c.entries) == 0 {
		return
	}
	now := time.Now()
	kept := c.order[:0]
	for _, k := range c.order {
		e, ok := c.entries[k]
		if !ok {
			continue
		}
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
}

func (c *Cache[V]) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

func (c *Cache[V]) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
