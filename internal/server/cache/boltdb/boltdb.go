// Package boltdb implements cache.Cache on a local bbolt file for single-node deployments.
package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophauth/internal/server/cache"
)

var bucketCache = []byte("cache")

// Cache stores entries as 8-byte big-endian expiry (unix nanoseconds) followed by value
type Cache struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// New opens or creates the BoltDB file at path
func New(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Put stores value with ttl
func (c *Cache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}

	entry := make([]byte, 8+len(value))
	// #nosec G115 -- время в наносекундах положительно
	binary.BigEndian.PutUint64(entry, uint64(c.now().Add(ttl).UnixNano()))
	copy(entry[8:], value)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), entry)
	})
	if err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}

	return nil
}

// Get retrieves value, expired entries are reported as a miss
func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := c.db.View(func(tx *bbolt.Tx) error {
		entry := tx.Bucket(bucketCache).Get([]byte(key))
		if len(entry) < 8 || c.expired(entry) {
			return nil
		}
		// Данные bbolt валидны только внутри транзакции, string копирует
		value = string(entry[8:])
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("cache get error: %w", err)
	}

	return value, found, nil
}

// Delete removes key
func (c *Cache) Delete(_ context.Context, key string) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Sweep deletes expired entries and returns how many were removed
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	removed := 0

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCache)

		// Удаление во время обхода курсором пропускает элементы, поэтому сначала собираем ключи
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if len(v) < 8 || c.expired(v) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return ctx.Err()
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache sweep error: %w", err)
	}

	return removed, nil
}

// Ping checks that the database is open
func (c *Cache) Ping(_ context.Context) error {
	return c.db.View(func(*bbolt.Tx) error { return nil })
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) expired(entry []byte) bool {
	// #nosec G115 -- значение записано из положительного int64
	expiresAt := int64(binary.BigEndian.Uint64(entry[:8]))
	return c.now().UnixNano() >= expiresAt
}
