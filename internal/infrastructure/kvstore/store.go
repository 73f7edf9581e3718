// Package kvstore provides the shared key-value cache capability used for the
// OAuth token, the stock snapshot, and the catalog/price caches.
//
// The capability surface is deliberately minimal: get, set-with-ttl,
// set-if-not-exists-with-ttl, delete. Three backends implement it: a Redis
// client, a REST client for the hosted store's HTTP face, and an in-memory
// store for tests and local development.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the shared key-value capability surface.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key with the given expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfNotExists stores value only when key is absent, returning whether
	// the write happened. This is the mutual-exclusion primitive behind the
	// sync lock and the token refresh debounce.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
