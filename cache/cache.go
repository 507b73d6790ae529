// Package cache provides caching for document snapshots used by the
// edit pipeline's preflight version check.
//
// The generic Cache interface has three implementations:
//   - MemoryCache: in-memory map, fastest, per-process
//   - BadgerCache: embedded persistent cache using BadgerDB
//   - RedisCache: shared cache using Redis
//
// Cached values implement Cachable so implementations that keep live
// pointers (the memory cache) can hand out copies instead of aliasing
// the caller's data.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a key is not in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheClosed is returned when operating on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")
)

// Cachable is implemented by values that can be stored in a cache.
// Copy must return a deep copy sharing no mutable state with the
// original.
type Cachable[T any] interface {
	Copy() T
}

// Cache stores values of type T keyed by string, with per-entry TTL.
type Cache[T Cachable[T]] interface {
	// Get retrieves the value for key. Returns ErrCacheMiss when the
	// key is absent or expired.
	Get(ctx context.Context, key string) (T, error)

	// Set stores data under key with the given TTL. A ttl of 0 uses
	// the cache's default TTL.
	Set(ctx context.Context, key string, data T, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Close releases the cache's resources.
	Close() error
}

// CacheOptions holds configuration shared by the implementations.
type CacheOptions struct {
	// DefaultTTL is applied when Set is called with ttl 0.
	// 0 means entries do not expire.
	DefaultTTL time.Duration

	// MaxItems caps the number of entries in the memory cache; when
	// the cap is reached the least recently accessed entry is evicted.
	// 0 means no limit.
	MaxItems int
}

// DefaultCacheOptions returns the default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL: time.Hour * 24,
		MaxItems:   10000,
	}
}
