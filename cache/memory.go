package cache

import (
	"context"
	"sync"
	"time"
)

// cacheItem is one entry in the memory cache.
type cacheItem[T any] struct {
	data       T
	expiresAt  time.Time
	lastAccess time.Time
}

// MemoryCache implements Cache with an in-process map. Values are
// copied on Set and on Get so callers never alias cached state.
type MemoryCache[T Cachable[T]] struct {
	items   map[string]cacheItem[T]
	mu      sync.RWMutex
	options *CacheOptions
	done    chan struct{}
	closed  bool
}

// NewMemoryCache creates a new MemoryCache. A nil options uses
// DefaultCacheOptions.
func NewMemoryCache[T Cachable[T]](options *CacheOptions) *MemoryCache[T] {
	if options == nil {
		options = DefaultCacheOptions()
	}

	c := &MemoryCache[T]{
		items:   make(map[string]cacheItem[T]),
		options: options,
		done:    make(chan struct{}),
	}

	go c.sweep()

	return c
}

// sweep periodically drops expired entries.
func (c *MemoryCache[T]) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.items {
				if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	var empty T

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return empty, ErrCacheClosed
	}

	item, ok := c.items[key]
	if !ok {
		return empty, ErrCacheMiss
	}

	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return empty, ErrCacheMiss
	}

	item.lastAccess = time.Now()
	c.items[key] = item

	return item.data.Copy(), nil
}

// Set stores a value with an optional TTL.
func (c *MemoryCache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.options.DefaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	if c.options.MaxItems > 0 && len(c.items) >= c.options.MaxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldestLocked()
		}
	}

	c.items[key] = cacheItem[T]{
		data:       data.Copy(),
		expiresAt:  expiresAt,
		lastAccess: time.Now(),
	}
	return nil
}

// evictOldestLocked removes the least recently accessed entry.
// Caller must hold the write lock.
func (c *MemoryCache[T]) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, item := range c.items {
		if first || item.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.lastAccess
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// Delete removes a key from the cache.
func (c *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	delete(c.items, key)
	return nil
}

// Clear removes all entries.
func (c *MemoryCache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	c.items = make(map[string]cacheItem[T])
	return nil
}

// Close stops the sweep goroutine and drops all entries.
func (c *MemoryCache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	c.items = nil
	return nil
}
