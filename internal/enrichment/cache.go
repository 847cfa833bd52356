package enrichment

import (
	"sync"
	"time"
)

type cacheEntry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
	used     bool
}

// Cache is a fixed-capacity TTL cache. When full, the entry with the oldest
// store time is replaced. Expired entries are treated as misses but are only
// evicted by a later store.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries []cacheEntry[K, V]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given capacity and TTL. A nil clock uses time.Now.
func NewCache[K comparable, V any](capacity int, ttl time.Duration, now func() time.Time) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		entries: make([]cacheEntry[K, V], capacity),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value for key if present and younger than the TTL
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	for i := range c.entries {
		e := &c.entries[i]
		if !e.used || e.key != key {
			continue
		}
		if c.now().Sub(e.storedAt) >= c.ttl {
			return zero, false
		}
		return e.value, true
	}
	return zero, false
}

// Put stores value under key, reusing the key's slot, else the first empty
// slot, else the slot with the oldest store time
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := -1
	for i := range c.entries {
		if c.entries[i].used && c.entries[i].key == key {
			slot = i
			break
		}
	}
	if slot < 0 {
		for i := range c.entries {
			if !c.entries[i].used {
				slot = i
				break
			}
		}
	}
	if slot < 0 {
		slot = 0
		for i := range c.entries {
			if c.entries[i].storedAt.Before(c.entries[slot].storedAt) {
				slot = i
			}
		}
	}

	c.entries[slot] = cacheEntry[K, V]{
		key:      key,
		value:    value,
		storedAt: c.now(),
		used:     true,
	}
}

// Len returns the number of occupied slots, expired ones included
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for i := range c.entries {
		if c.entries[i].used {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots
func (c *Cache[K, V]) Capacity() int {
	return len(c.entries)
}
