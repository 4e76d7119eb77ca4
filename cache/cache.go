// Package cache provides an in-memory TTL cache for memoizing read-mostly
// API results. Keys are composed from a logical namespace plus a canonical
// serialization of the call arguments, so logically identical argument sets
// always hit the same entry.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache is a concurrency-safe key-value store with per-entry expiry.
// A read past an entry's expiry is a miss and evicts the entry; stale
// values are never returned.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// now is replaceable for tests.
	now func() time.Time
}

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
// An expired entry is evicted and reported as a miss. A miss is a normal
// outcome, not an error.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key with expiry now+ttl, unconditionally
// overwriting any existing entry. A TTL of 0 means no expiration.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	e := &entry{
		value:    value,
		storedAt: c.now(),
	}
	if ttl > 0 {
		e.expiresAt = e.storedAt.Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// ClearNamespace drops every entry whose key belongs to the namespace.
// Used on logout to evict user-scoped entries without disturbing the
// shared catalog namespaces.
func (c *Cache) ClearNamespace(namespace string) {
	prefix := namespace + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Prune removes all expired entries and returns how many were dropped.
func (c *Cache) Prune() int {
	now := c.now()
	pruned := 0

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, key)
			pruned++
		}
	}

	return pruned
}

// Size returns the number of entries, expired or not.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns all keys in sorted order (for debugging/testing).
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
