package stock

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tsh/storefront/internal/domain/commerce"
)

// Sync tuning defaults.
const (
	DefaultBatchSize       = 20
	DefaultInterBatchDelay = time.Second
	defaultListingPerPage  = 200
	maxListingPages        = 50
	itemRetryDelay         = 2 * time.Second
	saveAttempts           = 3
)

// SyncOptions tunes a full sync run. MaxItems and Offset make runs chunkable
// so an external orchestrator can walk a large catalog across invocations;
// SkipLock is for those orchestrated runs, which hold the lock themselves.
type SyncOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
	MaxItems        int
	Offset          int
	SkipLock        bool
}

func (o *SyncOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = DefaultInterBatchDelay
	}
}

// SyncReport is the outcome of a full sync run. Skipped distinguishes "the
// lock was held" from a run that started and failed.
type SyncReport struct {
	Success    bool `json:"success"`
	Skipped    bool `json:"skipped,omitempty"`
	Processed  int  `json:"processed"`
	Errors     int  `json:"errors"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// QuickReport is the outcome of a targeted refresh.
type QuickReport struct {
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// FullSync rebuilds the warehouse snapshot from the upstream listing. It
// lists every active item, fetches each item's warehouse breakdown in
// bounded-parallel batches, and merges the results into the existing
// snapshot so ids outside the current offset window survive.
//
// The sync lock keeps concurrent full runs from overlapping; a run that
// finds the lock held returns Success=false without touching the cache.
func (c *Cache) FullSync(ctx context.Context, opts SyncOptions) SyncReport {
	opts.applyDefaults()

	if !opts.SkipLock {
		if !c.acquireLock(ctx) {
			c.logger.Info("stock sync skipped, lock held by another run")
			return SyncReport{Success: false, Skipped: true}
		}
		defer c.releaseLock(ctx)
	}

	itemIDs, err := c.listAllItemIDs(ctx)
	if err != nil {
		c.logger.Error("stock sync could not list items", zap.Error(err))
		return SyncReport{Success: false}
	}

	// Cut the offset window for this run.
	if opts.Offset >= len(itemIDs) {
		return SyncReport{Success: true}
	}
	window := itemIDs[opts.Offset:]
	var nextOffset *int
	if opts.MaxItems > 0 && opts.MaxItems < len(window) {
		window = window[:opts.MaxItems]
		next := opts.Offset + opts.MaxItems
		nextOffset = &next
	}

	results, errCount := c.fetchWindow(ctx, window, opts.BatchSize, opts.InterBatchDelay)

	snap := c.load(ctx)
	now := c.now()
	if snap == nil {
		snap = commerce.NewStockSnapshot(nil, now)
	}
	snap.Merge(results, now)

	if !c.saveWithRetry(ctx, snap) {
		c.logger.Error("stock sync finished but the snapshot could not be saved",
			zap.Int("processed", len(results)))
		return SyncReport{Success: false, Processed: len(results), Errors: errCount, NextOffset: nextOffset}
	}

	c.logger.Info("stock sync complete",
		zap.Int("processed", len(results)),
		zap.Int("errors", errCount),
		zap.Int("snapshot_items", snap.ItemCount))
	return SyncReport{Success: true, Processed: len(results), Errors: errCount, NextOffset: nextOffset}
}

// QuickSync refreshes a caller-chosen handful of items (just viewed, just
// ordered) without the full listing walk or the sync lock: the blast radius
// of a point refresh is one item.
func (c *Cache) QuickSync(ctx context.Context, itemIDs []string) QuickReport {
	if len(itemIDs) == 0 {
		return QuickReport{}
	}

	results, errCount := c.fetchWindow(ctx, itemIDs, DefaultBatchSize, 0)

	snap := c.load(ctx)
	if snap == nil {
		snap = commerce.NewStockSnapshot(nil, c.now())
	}
	for id, qty := range results {
		snap.Upsert(id, qty)
	}

	// Losing this write silently reintroduces the staleness bug the cache
	// exists to prevent, so the save gets its own retry loop.
	if !c.saveWithRetry(ctx, snap) {
		return QuickReport{Updated: 0, Errors: len(itemIDs)}
	}
	return QuickReport{Updated: len(results), Errors: errCount}
}

// ---------------------------------------------------------------------------
// Sync internals
// ---------------------------------------------------------------------------

// acquireLock takes the sync lock through the raw store so a store failure is
// distinguishable from "held elsewhere"; either way this run does not sync.
func (c *Cache) acquireLock(ctx context.Context) bool {
	stamp := []byte(c.now().UTC().Format(time.RFC3339))
	acquired, err := c.store.Store().SetIfNotExists(ctx, c.cfg.LockKey, stamp, c.cfg.LockTTL)
	if err != nil {
		c.logger.Warn("sync lock unavailable, skipping run", zap.Error(err))
		return false
	}
	return acquired
}

func (c *Cache) releaseLock(ctx context.Context) {
	if err := c.store.Store().Delete(ctx, c.cfg.LockKey); err != nil {
		// The lock TTL bounds how long a leaked lock can block syncs.
		c.logger.Warn("failed to release sync lock", zap.Error(err))
	}
}

// listAllItemIDs walks the ledger listing to exhaustion. The page ceiling
// guarantees termination even if upstream pagination misbehaves.
func (c *Cache) listAllItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for page := 1; page <= maxListingPages; page++ {
		result, err := c.ledger.ListActiveItems(ctx, page, defaultListingPerPage)
		if err != nil {
			return nil, err
		}
		for _, item := range result.Items {
			ids = append(ids, item.ItemID)
		}
		if !result.HasMorePage {
			return ids, nil
		}
	}
	c.logger.Warn("item listing hit the page ceiling",
		zap.Int("pages", maxListingPages),
		zap.Int("items", len(ids)))
	return ids, nil
}

// fetchWindow resolves warehouse figures for the given ids in parallel
// batches, pausing between batches to stay inside the governor's budget.
// A throttled item gets one delayed retry; a failed item defaults to zero
// for this run rather than sinking the whole sync.
func (c *Cache) fetchWindow(ctx context.Context, itemIDs []string, batchSize int, interBatchDelay time.Duration) (map[string]int, int) {
	results := make(map[string]int, len(itemIDs))
	var mu sync.Mutex
	errCount := 0

	for start := 0; start < len(itemIDs); start += batchSize {
		end := min(start+batchSize, len(itemIDs))
		batch := itemIDs[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range batch {
			g.Go(func() error {
				qty, err := c.fetchWithRetry(gctx, id)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					c.logger.Warn("stock fetch failed, defaulting to zero for this run",
						zap.String("item_id", id),
						zap.Error(err))
					errCount++
					results[id] = 0
					return nil
				}
				results[id] = qty
				return nil
			})
		}
		// Workers never return errors; Wait only fans in.
		_ = g.Wait()

		if end < len(itemIDs) && interBatchDelay > 0 {
			if err := c.sleep(ctx, interBatchDelay); err != nil {
				// Cancelled mid-run: report what we have; the merged write
				// below still preserves earlier windows.
				break
			}
		}
	}
	return results, errCount
}

// fetchWithRetry gives a throttled item one more chance after a fixed delay.
func (c *Cache) fetchWithRetry(ctx context.Context, itemID string) (int, error) {
	qty, err := c.fetchWarehouseFigure(ctx, itemID)
	if err == nil || !errors.Is(err, commerce.ErrRateLimited) {
		return qty, err
	}

	if sleepErr := c.sleep(ctx, itemRetryDelay); sleepErr != nil {
		return 0, sleepErr
	}
	return c.fetchWarehouseFigure(ctx, itemID)
}

// saveWithRetry attempts the snapshot write up to saveAttempts times.
func (c *Cache) saveWithRetry(ctx context.Context, snap *commerce.StockSnapshot) bool {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if c.save(ctx, snap) {
			return true
		}
		if attempt < saveAttempts {
			if err := c.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return false
			}
		}
	}
	return false
}
