// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, retry, background tasks and
// HTTP utilities.
package infra

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// --- Cache service ---

// CacheStore is the backing store of a Cache. Implementations must be safe
// for concurrent use.
type CacheStore[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	Purge()
}

// Cache is a typed get/put/invalidate cache over a pluggable store.
type Cache[V any] struct {
	store CacheStore[V]
	ttl   time.Duration
}

// NewCache creates a cache with the given default TTL over store.
func NewCache[V any](store CacheStore[V], ttl time.Duration) *Cache[V] {
	return &Cache[V]{store: store, ttl: ttl}
}

// NewMemoryCache creates a cache backed by an unbounded map store.
func NewMemoryCache[V any](ttl time.Duration) *Cache[V] {
	return NewCache[V](NewMapStore[V](), ttl)
}

// Get retrieves a value. Returns the zero value, false if missing or expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set stores a value with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.store.Set(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Invalidate removes a key.
func (c *Cache[V]) Invalidate(key string) {
	c.store.Delete(key)
}

// Flush removes all entries.
func (c *Cache[V]) Flush() {
	c.store.Purge()
}

// TTL returns the default entry lifetime.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// --- Map store ---

type mapEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// MapStore is a thread-safe map with per-entry expiry. A zero or negative
// TTL means the entry never expires.
type MapStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]mapEntry[V]
	now     func() time.Time
}

// NewMapStore creates an empty map store.
func NewMapStore[V any]() *MapStore[V] {
	return &MapStore[V]{entries: make(map[string]mapEntry[V]), now: time.Now}
}

func (s *MapStore[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && s.now().After(e.expiresAt)) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (s *MapStore[V]) Set(key string, value V, ttl time.Duration) {
	e := mapEntry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *MapStore[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *MapStore[V]) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]mapEntry[V])
	s.mu.Unlock()
}

// Cleanup removes expired entries. Can be called periodically.
func (s *MapStore[V]) Cleanup() {
	s.mu.Lock()
	now := s.now()
	for k, v := range s.entries {
		if !v.expiresAt.IsZero() && now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// --- LRU store ---

// LRUStore is a size-bounded store with a single store-wide TTL; the ttl
// argument of Set is ignored in favour of the TTL given at construction.
type LRUStore[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewLRUStore creates an LRU store holding at most size entries for ttl each.
func NewLRUStore[V any](size int, ttl time.Duration) *LRUStore[V] {
	return &LRUStore[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (s *LRUStore[V]) Get(key string) (V, bool) { return s.lru.Get(key) }

func (s *LRUStore[V]) Set(key string, value V, _ time.Duration) { s.lru.Add(key, value) }

func (s *LRUStore[V]) Delete(key string) { s.lru.Remove(key) }

func (s *LRUStore[V]) Purge() { s.lru.Purge() }

// Len returns the number of live entries.
func (s *LRUStore[V]) Len() int { return s.lru.Len() }
