package kvstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// BestEffort wraps a Store with the cache contract every read path relies on:
// a failed get is a miss, a failed write means "proceed uncached", and no
// store error ever propagates past this boundary. Each failure logs a single
// warning so an unreachable store is visible without breaking page renders.
//
// Lock acquisition is the one operation that keeps the raw error surface; see
// Store.SetIfNotExists used directly by the sync lock.
type BestEffort struct {
	store  Store
	logger *zap.Logger
}

// NewBestEffort wraps store with the swallow-and-log contract.
func NewBestEffort(store Store, logger *zap.Logger) *BestEffort {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffort{store: store, logger: logger}
}

// Get returns the cached value, or nil on miss or store failure.
func (b *BestEffort) Get(ctx context.Context, key string) []byte {
	value, err := b.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.logger.Warn("cache get failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}
		return nil
	}
	return value
}

// SetWithTTL stores value, reporting success. Failure means proceed uncached.
func (b *BestEffort) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := b.store.SetWithTTL(ctx, key, value, ttl); err != nil {
		b.logger.Warn("cache set failed, proceeding uncached",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return false
	}
	return true
}

// SetIfNotExists attempts a conditional write; any store failure reads as
// "not acquired".
func (b *BestEffort) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	acquired, err := b.store.SetIfNotExists(ctx, key, value, ttl)
	if err != nil {
		b.logger.Warn("cache conditional set failed",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return acquired
}

// Delete removes key, reporting success.
func (b *BestEffort) Delete(ctx context.Context, key string) bool {
	if err := b.store.Delete(ctx, key); err != nil {
		b.logger.Warn("cache delete failed",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// Store exposes the wrapped raw store for callers that need the error
// distinction (the sync lock).
func (b *BestEffort) Store() Store {
	return b.store
}
