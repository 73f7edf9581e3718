package commerce

import "time"

// ---------------------------------------------------------------------------
// Per-item stock breakdown
// ---------------------------------------------------------------------------

// StockLocation is one warehouse entry in an item's stock breakdown.
type StockLocation struct {
	LocationID       string `json:"location_id"`
	LocationName     string `json:"location_name"`
	AvailableForSale int    `json:"location_available_for_sale_stock"`
}

// ItemStock is the per-location stock breakdown the inventory surface
// reports for a single item. TotalAvailable aggregates every location and
// must never be used as the storefront figure: only the configured
// fulfillment warehouse's entry counts.
type ItemStock struct {
	ItemID         string          `json:"item_id"`
	TotalAvailable int             `json:"available_for_sale_stock"`
	Locations      []StockLocation `json:"locations"`
}

// ForWarehouse returns the available-for-sale figure for the given warehouse.
// The boolean reports whether the warehouse appeared in the breakdown at all;
// absence must never be treated as "in stock".
func (s *ItemStock) ForWarehouse(locationID string) (int, bool) {
	for _, loc := range s.Locations {
		if loc.LocationID == locationID {
			return loc.AvailableForSale, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// StockSnapshot
// ---------------------------------------------------------------------------

// StockSnapshot is the warehouse-scoped stock map held under a single key in
// the shared cache. Quantities may be negative (over-committed stock). An
// entry exists only for items a sync or backfill actually observed.
type StockSnapshot struct {
	Stock     map[string]int `json:"stock"`
	UpdatedAt time.Time      `json:"updated_at"`
	ItemCount int            `json:"item_count"`
}

// NewStockSnapshot creates a snapshot from a freshly synced map.
func NewStockSnapshot(stock map[string]int, now time.Time) *StockSnapshot {
	if stock == nil {
		stock = make(map[string]int)
	}
	return &StockSnapshot{
		Stock:     stock,
		UpdatedAt: now,
		ItemCount: len(stock),
	}
}

// Merge applies the given updates on top of the snapshot, last write wins per
// item id. Ids outside the update set are preserved, which is what makes
// chunked sync runs lossless.
func (s *StockSnapshot) Merge(updates map[string]int, now time.Time) {
	if s.Stock == nil {
		s.Stock = make(map[string]int, len(updates))
	}
	for id, qty := range updates {
		s.Stock[id] = qty
	}
	s.ItemCount = len(s.Stock)
	s.UpdatedAt = now
}

// Upsert patches a single item's figure without resetting UpdatedAt, so an
// on-demand backfill does not make a mostly-old snapshot look freshly synced.
func (s *StockSnapshot) Upsert(itemID string, qty int) {
	if s.Stock == nil {
		s.Stock = make(map[string]int, 1)
	}
	s.Stock[itemID] = qty
	s.ItemCount = len(s.Stock)
}

// Get returns the cached figure for an item and whether it was observed.
func (s *StockSnapshot) Get(itemID string) (int, bool) {
	qty, ok := s.Stock[itemID]
	return qty, ok
}

// Age returns how long ago the snapshot was last fully synced.
func (s *StockSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}

// IsStale reports whether the snapshot is older than the given TTL. This is
// independent of store-level expiry and drives proactive re-sync decisions.
func (s *StockSnapshot) IsStale(ttl time.Duration, now time.Time) bool {
	return s.Age(now) > ttl
}

// StockSource tags where a single-item stock figure came from.
type StockSource string

const (
	StockSourceCache       StockSource = "cache"
	StockSourceAPI         StockSource = "api"
	StockSourceUnavailable StockSource = "unavailable"
)

// StockResult is the outcome of a single-item stock lookup. Stock is zero
// whenever Source is unavailable; the contract never guesses a non-zero
// figure it cannot justify.
type StockResult struct {
	ItemID string      `json:"item_id"`
	Stock  int         `json:"stock"`
	Source StockSource `json:"source"`
}
