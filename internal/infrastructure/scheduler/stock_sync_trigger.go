// Package scheduler runs the background stock refresh loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/application/stock"
)

// StockSyncTriggerConfig holds the trigger's timing knobs.
type StockSyncTriggerConfig struct {
	// CheckInterval is how often the snapshot's staleness is inspected.
	CheckInterval time.Duration

	// BatchSize and InterBatchDelay are passed through to the sync run.
	BatchSize       int
	InterBatchDelay time.Duration
}

// DefaultStockSyncTriggerConfig returns the default configuration.
func DefaultStockSyncTriggerConfig() StockSyncTriggerConfig {
	return StockSyncTriggerConfig{
		CheckInterval: 5 * time.Minute,
	}
}

// StockSyncTrigger keeps the stock snapshot warm: every CheckInterval it
// inspects the snapshot and runs a full sync when it is missing or stale.
// The sync lock makes concurrent triggers across replicas harmless.
type StockSyncTrigger struct {
	config StockSyncTriggerConfig
	cache  *stock.Cache
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewStockSyncTrigger creates a stock sync trigger.
func NewStockSyncTrigger(config StockSyncTriggerConfig, cache *stock.Cache, logger *zap.Logger) *StockSyncTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultStockSyncTriggerConfig().CheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockSyncTrigger{config: config, cache: cache, logger: logger}
}

// Start launches the check loop. Calling Start on a running trigger is a
// no-op.
func (t *StockSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("stock sync trigger started",
		zap.Duration("check_interval", t.config.CheckInterval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx.
func (t *StockSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("stock sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *StockSyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start so a cold deployment warms up without
	// waiting a full interval.
	t.checkAndSync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndSync(ctx)
		}
	}
}

// checkAndSync runs a full sync when the snapshot is missing or stale.
// Skips are logged, never errors: another replica holding the lock is the
// healthy case, not a failure.
func (t *StockSyncTrigger) checkAndSync(ctx context.Context) {
	status := t.cache.Status(ctx)
	if status.Exists && !status.IsStale {
		t.logger.Debug("stock snapshot still fresh",
			zap.Int("items", status.ItemCount),
			zap.Int64("age_seconds", status.AgeSeconds))
		return
	}

	report := t.cache.FullSync(ctx, stock.SyncOptions{
		BatchSize:       t.config.BatchSize,
		InterBatchDelay: t.config.InterBatchDelay,
	})
	switch {
	case report.Skipped:
		t.logger.Info("scheduled stock sync skipped, lock held elsewhere")
	case !report.Success:
		t.logger.Warn("scheduled stock sync failed",
			zap.Int("processed", report.Processed),
			zap.Int("errors", report.Errors))
	default:
		t.logger.Info("scheduled stock sync complete",
			zap.Int("processed", report.Processed),
			zap.Int("errors", report.Errors))
	}
}
