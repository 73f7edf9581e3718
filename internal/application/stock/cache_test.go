package stock

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeLedger serves a fixed catalog in pages of two.
type fakeLedger struct {
	items []commerce.Product
}

func (f *fakeLedger) ListActiveItems(_ context.Context, page, perPage int) (*commerce.ItemPage, error) {
	start := (page - 1) * perPage
	if start >= len(f.items) {
		return &commerce.ItemPage{}, nil
	}
	end := min(start+perPage, len(f.items))
	return &commerce.ItemPage{
		Items:       f.items[start:end],
		HasMorePage: end < len(f.items),
	}, nil
}

func (f *fakeLedger) PriceListRates(context.Context, string, []string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeLedger) ListSalesOrders(context.Context, commerce.ListOptions) ([]commerce.SalesOrder, bool, error) {
	return nil, false, nil
}

func (f *fakeLedger) ListInvoices(context.Context, commerce.ListOptions) ([]commerce.Invoice, bool, error) {
	return nil, false, nil
}

// fakeInventory answers per-item warehouse breakdowns and can throttle or
// fail individual items.
type fakeInventory struct {
	mu        sync.Mutex
	stocks    map[string]int // warehouse figure per item
	throttles map[string]int // remaining 429 answers per item
	fails     map[string]error
	calls     map[string]int
}

func newFakeInventory(stocks map[string]int) *fakeInventory {
	return &fakeInventory{
		stocks:    stocks,
		throttles: make(map[string]int),
		fails:     make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeInventory) ItemStock(_ context.Context, itemID string) (*commerce.ItemStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[itemID]++
	if f.throttles[itemID] > 0 {
		f.throttles[itemID]--
		return nil, commerce.ErrRateLimited
	}
	if err := f.fails[itemID]; err != nil {
		return nil, err
	}

	qty, ok := f.stocks[itemID]
	if !ok {
		return nil, commerce.ErrUpstreamUnavailable
	}
	return &commerce.ItemStock{
		ItemID:         itemID,
		TotalAvailable: qty + 100, // aggregate is always bigger to catch misuse
		Locations: []commerce.StockLocation{
			{LocationID: "wh-main", LocationName: "Wholesale", AvailableForSale: qty},
			{LocationID: "wh-retail", LocationName: "Retail", AvailableForSale: 100},
		},
	}, nil
}

func (f *fakeInventory) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func products(ids ...string) []commerce.Product {
	out := make([]commerce.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, commerce.Product{ItemID: id, Name: "Item " + id, Status: "active"})
	}
	return out
}

type fixture struct {
	cache     *Cache
	store     *kvstore.MemoryStore
	ledger    *fakeLedger
	inventory *fakeInventory
}

func newFixture(t *testing.T, catalog []commerce.Product, stocks map[string]int) *fixture {
	t.Helper()

	store := kvstore.NewMemoryStore()
	ledger := &fakeLedger{items: catalog}
	inventory := newFakeInventory(stocks)

	cache, err := New(
		Config{WarehouseID: "wh-main"},
		kvstore.NewBestEffort(store, zap.NewNop()),
		ledger,
		inventory,
		zap.NewNop(),
	)
	require.NoError(t, err)
	cache.sleep = func(context.Context, time.Duration) error { return nil }

	return &fixture{cache: cache, store: store, ledger: ledger, inventory: inventory}
}

func (fx *fixture) storedSnapshot(t *testing.T) *commerce.StockSnapshot {
	t.Helper()
	raw, err := fx.store.Get(context.Background(), DefaultCacheKey)
	require.NoError(t, err)
	var snap commerce.StockSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return &snap
}

func (fx *fixture) seedSnapshot(t *testing.T, stock map[string]int, updatedAt time.Time) {
	t.Helper()
	raw, err := json.Marshal(commerce.NewStockSnapshot(stock, updatedAt))
	require.NoError(t, err)
	require.NoError(t, fx.store.SetWithTTL(context.Background(), DefaultCacheKey, raw, time.Hour))
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_RequiresWarehouse(t *testing.T) {
	_, err := New(Config{}, kvstore.NewBestEffort(kvstore.NewMemoryStore(), zap.NewNop()), &fakeLedger{}, newFakeInventory(nil), zap.NewNop())
	assert.ErrorIs(t, err, commerce.ErrWarehouseNotSet)
}

// ---------------------------------------------------------------------------
// GetSingle
// ---------------------------------------------------------------------------

func TestGetSingle_CacheHit(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.seedSnapshot(t, map[string]int{"a": 5}, time.Now())

	result := fx.cache.GetSingle(context.Background(), "a", true)

	assert.Equal(t, commerce.StockResult{ItemID: "a", Stock: 5, Source: commerce.StockSourceCache}, result)
	assert.Zero(t, fx.inventory.totalCalls(), "a hit must not touch the inventory API")
}

func TestGetSingle_MissWithoutFetchIsUnavailable(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"a": 5})

	result := fx.cache.GetSingle(context.Background(), "a", false)

	assert.Equal(t, commerce.StockSourceUnavailable, result.Source)
	assert.Zero(t, result.Stock)
	assert.Zero(t, fx.inventory.totalCalls())
}

func TestGetSingle_BackfillThenCacheHit(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"z": 12})
	ctx := context.Background()

	first := fx.cache.GetSingle(ctx, "z", true)
	assert.Equal(t, commerce.StockResult{ItemID: "z", Stock: 12, Source: commerce.StockSourceAPI}, first)

	second := fx.cache.GetSingle(ctx, "z", false)
	assert.Equal(t, commerce.StockResult{ItemID: "z", Stock: 12, Source: commerce.StockSourceCache}, second)
	assert.Equal(t, 1, fx.inventory.totalCalls(), "the backfill must be the only upstream call")
}

func TestGetSingle_BackfillPreservesUpdatedAt(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"z": 12})
	syncedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fx.seedSnapshot(t, map[string]int{"a": 5}, syncedAt)

	fx.cache.GetSingle(context.Background(), "z", true)

	snap := fx.storedSnapshot(t)
	assert.Equal(t, syncedAt, snap.UpdatedAt.UTC())
	assert.Equal(t, 2, snap.ItemCount)
}

func TestGetSingle_UpstreamFailureIsUnavailable(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{})

	result := fx.cache.GetSingle(context.Background(), "ghost", true)

	assert.Equal(t, commerce.StockSourceUnavailable, result.Source)
	assert.Zero(t, result.Stock, "never guess a figure the upstream did not provide")
}

func TestGetSingle_UsesWarehouseFigureNotAggregate(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"a": 3})

	result := fx.cache.GetSingle(context.Background(), "a", true)

	// The fake reports aggregate 103 and retail 100; only wh-main counts.
	assert.Equal(t, 3, result.Stock)
}

// ---------------------------------------------------------------------------
// GetBulk
// ---------------------------------------------------------------------------

func TestGetBulk_AbsentIdsReadZero(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"x": 5, "y": 9})
	fx.seedSnapshot(t, map[string]int{"x": 5}, time.Now())

	result, stats := fx.cache.GetBulk(context.Background(), []string{"x", "y"})

	assert.Equal(t, map[string]int{"x": 5, "y": 0}, result)
	assert.Equal(t, BulkStats{Hits: 1, Misses: 1}, stats)
	assert.Zero(t, fx.inventory.totalCalls(), "bulk reads must never fan out upstream")
}

func TestGetBulk_EmptyCacheForcesZeroes(t *testing.T) {
	fx := newFixture(t, nil, map[string]int{"a": 4})

	result, stats := fx.cache.GetBulk(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, map[string]int{"a": 0, "b": 0, "c": 0}, result)
	assert.Equal(t, BulkStats{Misses: 3}, stats)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestStatus(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()

	assert.Equal(t, Status{}, fx.cache.Status(ctx))

	now := time.Now()
	fx.cache.now = func() time.Time { return now }
	fx.seedSnapshot(t, map[string]int{"a": 1, "b": 2}, now.Add(-10*time.Minute))

	status := fx.cache.Status(ctx)
	assert.True(t, status.Exists)
	assert.Equal(t, 2, status.ItemCount)
	assert.InDelta(t, 600, status.AgeSeconds, 1)
	assert.False(t, status.IsStale)

	fx.seedSnapshot(t, map[string]int{"a": 1}, now.Add(-31*time.Minute))
	assert.True(t, fx.cache.Status(ctx).IsStale)
}
