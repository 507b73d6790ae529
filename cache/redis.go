package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a Redis server. Values are stored as
// JSON under a fixed key prefix so several caches can share one
// database.
type RedisCache[T Cachable[T]] struct {
	client  *redis.Client
	options *CacheOptions
	prefix  string
}

// NewRedisCache creates a RedisCache and verifies the connection.
func NewRedisCache[T Cachable[T]](redisAddr, password string, db int, options *CacheOptions) (*RedisCache[T], error) {
	if options == nil {
		options = DefaultCacheOptions()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache[T]{
		client:  client,
		options: options,
		prefix:  "coedit:doc:",
	}, nil
}

func (c *RedisCache[T]) key(key string) string {
	return c.prefix + key
}

// Get retrieves a value from the cache.
func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, ErrCacheMiss
		}
		return result, fmt.Errorf("failed to get from Redis: %w", err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, nil
}

// Set stores a value with an optional TTL.
func (c *RedisCache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl <= 0 {
		ttl = c.options.DefaultTTL
	}

	if err := c.client.Set(ctx, c.key(key), bytes, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in Redis: %w", err)
	}

	return nil
}

// Delete removes a key from the cache.
func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from Redis: %w", err)
	}
	return nil
}

// Clear removes every key under the cache's prefix.
func (c *RedisCache[T]) Clear(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, c.prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list keys from Redis: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys from Redis: %w", err)
		}
	}

	return nil
}

// Close closes the Redis client.
func (c *RedisCache[T]) Close() error {
	return c.client.Close()
}
