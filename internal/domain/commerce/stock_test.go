package commerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemStock_ForWarehouse(t *testing.T) {
	stock := &ItemStock{
		ItemID:         "item-1",
		TotalAvailable: 40,
		Locations: []StockLocation{
			{LocationID: "wh-main", LocationName: "Wholesale", AvailableForSale: 12},
			{LocationID: "wh-retail", LocationName: "Retail", AvailableForSale: 28},
		},
	}

	tests := []struct {
		name       string
		locationID string
		wantQty    int
		wantFound  bool
	}{
		{"configured warehouse", "wh-main", 12, true},
		{"other warehouse", "wh-retail", 28, true},
		{"unknown warehouse", "wh-ghost", 0, false},
		{"empty id", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, found := stock.ForWarehouse(tt.locationID)
			assert.Equal(t, tt.wantQty, qty)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestItemStock_ForWarehouse_NeverUsesAggregate(t *testing.T) {
	// An item stocked only in other locations must read as unobserved for the
	// fulfillment warehouse even though the aggregate figure is positive.
	stock := &ItemStock{
		ItemID:         "item-2",
		TotalAvailable: 100,
		Locations: []StockLocation{
			{LocationID: "wh-retail", AvailableForSale: 100},
		},
	}

	qty, found := stock.ForWarehouse("wh-main")
	assert.Zero(t, qty)
	assert.False(t, found)
}

func TestStockSnapshot_Merge(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)

	snap := NewStockSnapshot(map[string]int{"a": 5, "b": 3}, t0)

	snap.Merge(map[string]int{"b": 7, "c": -2}, t1)

	assert.Equal(t, map[string]int{"a": 5, "b": 7, "c": -2}, snap.Stock)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, t1, snap.UpdatedAt)
}

func TestStockSnapshot_Merge_ChunkedRunsAreLossless(t *testing.T) {
	// Two offset windows of a chunked full sync must union, not clobber.
	now := time.Now()
	snap := NewStockSnapshot(nil, now)

	snap.Merge(map[string]int{"a": 1, "b": 2}, now)
	snap.Merge(map[string]int{"c": 3, "d": 4}, now.Add(time.Minute))

	require.Equal(t, 4, snap.ItemCount)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, ok := snap.Get(id)
		assert.True(t, ok, "id %s lost by chunked merge", id)
	}
}

func TestStockSnapshot_Upsert_PreservesUpdatedAt(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	snap := NewStockSnapshot(map[string]int{"a": 5}, t0)

	snap.Upsert("z", 12)

	assert.Equal(t, t0, snap.UpdatedAt, "point backfill must not reset the sync timestamp")
	qty, ok := snap.Get("z")
	assert.True(t, ok)
	assert.Equal(t, 12, qty)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestStockSnapshot_Staleness(t *testing.T) {
	t0 := time.Now()
	snap := NewStockSnapshot(map[string]int{"a": 1}, t0)

	ttl := 30 * time.Minute

	assert.False(t, snap.IsStale(ttl, t0.Add(29*time.Minute)))
	assert.True(t, snap.IsStale(ttl, t0.Add(31*time.Minute)))
	assert.Equal(t, 31*time.Minute, snap.Age(t0.Add(31*time.Minute)))
}

func TestStockSnapshot_NilMapSafety(t *testing.T) {
	snap := &StockSnapshot{}

	snap.Upsert("a", 1)
	qty, ok := snap.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, qty)

	snap2 := &StockSnapshot{}
	snap2.Merge(map[string]int{"b": 2}, time.Now())
	assert.Equal(t, 1, snap2.ItemCount)
}
