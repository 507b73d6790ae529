package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache implements Cache on an embedded BadgerDB. It survives
// restarts, unlike the memory cache, without needing an external
// server like Redis.
type BadgerCache[T Cachable[T]] struct {
	db      *badger.DB
	options *CacheOptions
	done    chan struct{}
}

// NewBadgerCache opens (or creates) a BadgerDB at dbPath.
func NewBadgerCache[T Cachable[T]](dbPath string, options *CacheOptions) (*BadgerCache[T], error) {
	if options == nil {
		options = DefaultCacheOptions()
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	c := &BadgerCache[T]{
		db:      db,
		options: options,
		done:    make(chan struct{}),
	}

	go c.runGC()

	return c, nil
}

// runGC runs Badger's value-log garbage collection periodically.
func (c *BadgerCache[T]) runGC() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			for {
				if err := c.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// Get retrieves a value from the cache.
func (c *BadgerCache[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return result, ErrCacheMiss
		}
		return result, fmt.Errorf("failed to get from cache: %w", err)
	}

	return result, nil
}

// Set stores a value with an optional TTL.
func (c *BadgerCache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl <= 0 {
		ttl = c.options.DefaultTTL
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}

	return nil
}

// Delete removes a key from the cache.
func (c *BadgerCache[T]) Delete(ctx context.Context, key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Clear removes all entries.
func (c *BadgerCache[T]) Clear(ctx context.Context) error {
	return c.db.DropAll()
}

// Close stops the GC goroutine and closes the database.
func (c *BadgerCache[T]) Close() error {
	close(c.done)
	return c.db.Close()
}
