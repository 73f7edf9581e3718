// Package stock implements the warehouse-scoped stock reconciliation cache:
// a single shared snapshot synchronized in bulk from the ERP inventory
// surface and patched on demand, serving read paths that never spend rate
// budget and never report stock they cannot justify.
package stock

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

// Default cache parameters.
const (
	DefaultCacheKey = "stock:wholesale"
	DefaultLockKey  = "stock:sync_lock"
	DefaultTTL      = 30 * time.Minute
	DefaultLockTTL  = 10 * time.Minute
)

// Config holds the reconciliation cache settings. WarehouseID comes from the
// application configuration; it is the only warehouse whose figures count.
type Config struct {
	WarehouseID string
	CacheKey    string
	LockKey     string
	TTL         time.Duration
	LockTTL     time.Duration
}

func (c *Config) applyDefaults() {
	if c.CacheKey == "" {
		c.CacheKey = DefaultCacheKey
	}
	if c.LockKey == "" {
		c.LockKey = DefaultLockKey
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
}

// Cache is the stock reconciliation cache. Reads come from the shared
// snapshot; only the sync and backfill paths touch the inventory API.
type Cache struct {
	cfg       Config
	store     *kvstore.BestEffort
	ledger    commerce.LedgerAPI
	inventory commerce.InventoryAPI
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a reconciliation cache over the shared store and ERP surfaces.
func New(cfg Config, store *kvstore.BestEffort, ledger commerce.LedgerAPI, inventory commerce.InventoryAPI, logger *zap.Logger) (*Cache, error) {
	if cfg.WarehouseID == "" {
		return nil, commerce.ErrWarehouseNotSet
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		cfg:       cfg,
		store:     store,
		ledger:    ledger,
		inventory: inventory,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// ---------------------------------------------------------------------------
// Read paths
// ---------------------------------------------------------------------------

// GetSingle resolves one item's stock figure. A cache hit answers
// immediately; a miss with fetchOnMiss consults the inventory surface and
// backfills the snapshot; everything else is an honest "unavailable" zero.
func (c *Cache) GetSingle(ctx context.Context, itemID string, fetchOnMiss bool) commerce.StockResult {
	snap := c.load(ctx)
	if snap != nil {
		if qty, ok := snap.Get(itemID); ok {
			return commerce.StockResult{ItemID: itemID, Stock: qty, Source: commerce.StockSourceCache}
		}
	}

	if !fetchOnMiss {
		return commerce.StockResult{ItemID: itemID, Source: commerce.StockSourceUnavailable}
	}

	qty, err := c.fetchWarehouseFigure(ctx, itemID)
	if err != nil {
		c.logger.Warn("on-demand stock fetch failed",
			zap.String("item_id", itemID),
			zap.Error(err))
		return commerce.StockResult{ItemID: itemID, Source: commerce.StockSourceUnavailable}
	}

	// Point upsert: read-merge-write, preserving the snapshot's sync
	// timestamp so one backfill does not disguise a stale map as fresh.
	snap = c.load(ctx)
	if snap == nil {
		snap = commerce.NewStockSnapshot(map[string]int{itemID: qty}, c.now())
	} else {
		snap.Upsert(itemID, qty)
	}
	c.save(ctx, snap)

	return commerce.StockResult{ItemID: itemID, Stock: qty, Source: commerce.StockSourceAPI}
}

// BulkStats reports cache effectiveness for one bulk resolution.
type BulkStats struct {
	Hits   int
	Misses int
}

// GetBulk resolves stock for a listing page from the cache alone. Ids absent
// from the snapshot read as zero; no upstream call happens here regardless of
// miss rate, so render-path latency stays bounded and the shared rate budget
// stays with the writers.
func (c *Cache) GetBulk(ctx context.Context, itemIDs []string) (map[string]int, BulkStats) {
	result := make(map[string]int, len(itemIDs))
	var stats BulkStats

	snap := c.load(ctx)
	for _, id := range itemIDs {
		if snap != nil {
			if qty, ok := snap.Get(id); ok {
				result[id] = qty
				stats.Hits++
				continue
			}
		}
		result[id] = 0
		stats.Misses++
	}

	if len(itemIDs) > 0 {
		c.logger.Debug("bulk stock resolution",
			zap.Int("requested", len(itemIDs)),
			zap.Int("hits", stats.Hits),
			zap.Int("misses", stats.Misses))
	}
	return result, stats
}

// Status describes the snapshot for sync decisions and operator visibility.
type Status struct {
	Exists     bool  `json:"exists"`
	ItemCount  int   `json:"item_count"`
	AgeSeconds int64 `json:"age_seconds"`
	IsStale    bool  `json:"is_stale"`
}

// Status reports whether a snapshot exists and whether it has outlived the
// TTL. Staleness here is computed from the snapshot's own timestamp,
// independent of store-level expiry.
func (c *Cache) Status(ctx context.Context) Status {
	snap := c.load(ctx)
	if snap == nil {
		return Status{}
	}
	now := c.now()
	return Status{
		Exists:     true,
		ItemCount:  snap.ItemCount,
		AgeSeconds: int64(snap.Age(now).Seconds()),
		IsStale:    snap.IsStale(c.cfg.TTL, now),
	}
}

// ---------------------------------------------------------------------------
// Snapshot plumbing
// ---------------------------------------------------------------------------

// load reads the snapshot; any miss or decode problem reads as "no snapshot".
func (c *Cache) load(ctx context.Context) *commerce.StockSnapshot {
	raw := c.store.Get(ctx, c.cfg.CacheKey)
	if raw == nil {
		return nil
	}
	var snap commerce.StockSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("discarding malformed stock snapshot", zap.Error(err))
		return nil
	}
	return &snap
}

// save writes the snapshot back with the cache TTL.
func (c *Cache) save(ctx context.Context, snap *commerce.StockSnapshot) bool {
	raw, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("failed to encode stock snapshot", zap.Error(err))
		return false
	}
	return c.store.SetWithTTL(ctx, c.cfg.CacheKey, raw, c.cfg.TTL)
}

// fetchWarehouseFigure pulls one item from the inventory surface and extracts
// the configured warehouse's available-for-sale figure, never the aggregate.
func (c *Cache) fetchWarehouseFigure(ctx context.Context, itemID string) (int, error) {
	itemStock, err := c.inventory.ItemStock(ctx, itemID)
	if err != nil {
		return 0, err
	}

	qty, found := itemStock.ForWarehouse(c.cfg.WarehouseID)
	if !found {
		// The upstream knows the item but not our warehouse: zero stock for
		// us, and worth flagging because it can indicate a misconfigured
		// warehouse identifier.
		c.logger.Warn("configured warehouse absent from item breakdown",
			zap.String("item_id", itemID),
			zap.String("warehouse_id", c.cfg.WarehouseID))
		return 0, nil
	}
	return qty, nil
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
