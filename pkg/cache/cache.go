package cache

import (
	"sync"
	"time"

	"talking-pet/companion/pkg/clock"
)

// Item represents a cached value with expiration
type Item[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Expired reports whether the item lapsed at now. A zero ExpiresAt never expires.
func (item Item[V]) Expired(now time.Time) bool {
	return !item.ExpiresAt.IsZero() && !now.Before(item.ExpiresAt)
}

// Cache is a thread-safe in-memory cache with per-entry expiration
type Cache[K comparable, V any] struct {
	clock             clock.Clock
	defaultExpiration time.Duration
	maxItems          int

	mu        sync.RWMutex
	items     map[K]Item[V]
	onEvicted func(K, V)
}

// New creates a cache whose entries live for defaultExpiration (0 = forever).
// maxItems bounds the cache; 0 means unbounded.
func New[K comparable, V any](c clock.Clock, defaultExpiration time.Duration, maxItems int) *Cache[K, V] {
	return &Cache[K, V]{
		clock:             c,
		defaultExpiration: defaultExpiration,
		maxItems:          maxItems,
		items:             make(map[K]Item[V]),
	}
}

// Set adds an item with the default expiration
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithExpiration(key, value, c.defaultExpiration)
}

// SetWithExpiration adds an item that expires after d (0 = never)
func (c *Cache[K, V]) SetWithExpiration(key K, value V, d time.Duration) {
	var exp time.Time
	if d > 0 {
		exp = c.clock.Now().Add(d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldestLocked()
	}
	c.items[key] = Item[V]{Value: value, ExpiresAt: exp}
}

// Get returns the value if present and unexpired
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found || item.Expired(c.clock.Now()) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Delete removes an item
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found {
		delete(c.items, key)
		if c.onEvicted != nil {
			c.onEvicted(key, item.Value)
		}
	}
}

// Flush removes all items
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for k, v := range c.items {
			c.onEvicted(k, v.Value)
		}
	}
	c.items = make(map[K]Item[V])
}

// DeleteExpired drops every lapsed item
func (c *Cache[K, V]) DeleteExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.items {
		if v.Expired(now) {
			delete(c.items, k)
			if c.onEvicted != nil {
				c.onEvicted(k, v.Value)
			}
		}
	}
}

// Count returns the number of items, including expired ones not yet removed
func (c *Cache[K, V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// SetOnEvicted sets the callback to be called when an item is removed
func (c *Cache[K, V]) SetOnEvicted(f func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvicted = f
}

// evictOldestLocked removes the item closest to expiry. Caller holds mu.
func (c *Cache[K, V]) evictOldestLocked() {
	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, v := range c.items {
		if !found || (!v.ExpiresAt.IsZero() && (oldest.IsZero() || v.ExpiresAt.Before(oldest))) {
			oldestKey, oldest, found = k, v.ExpiresAt, true
		}
	}
	if !found {
		return
	}
	item := c.items[oldestKey]
	delete(c.items, oldestKey)
	if c.onEvicted != nil {
		c.onEvicted(oldestKey, item.Value)
	}
}
