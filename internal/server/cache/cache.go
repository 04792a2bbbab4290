// Package cache defines the expiring key-value store used for revoked tokens and OAuth state.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned by Put when ttl is not positive
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Cache is an expiring key-value store
type Cache interface {
	// Put stores value under key for ttl, overwriting any previous value
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns value and true, or false on a miss or an expired entry
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key, deleting a missing key is a no-op
	Delete(ctx context.Context, key string) error

	// Ping checks backend availability
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}
