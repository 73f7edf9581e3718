// Package pricing resolves customer-specific prices from ERP price lists,
// caching resolved rates per price list so repeat listings cost no upstream
// budget. Absence from a price list is authoritative: an item the list does
// not cover is "not priced", never zero-priced.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

// Default resolution parameters. The batch size matches the upstream's
// per-request item ceiling; concurrency stays low because price-list calls
// share the ledger rate budget with everything else.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 3
	DefaultTTL         = 24 * time.Hour
	DefaultCurrency    = "IQD"

	cacheKeyPrefix = "prices:list:"
)

// Config holds the price resolver settings.
type Config struct {
	BatchSize   int
	Concurrency int
	TTL         time.Duration
	Currency    string
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
}

// rateRecord is one cached resolution. Covered=false remembers that the
// price list authoritatively does not price the item, so repeat requests do
// not re-ask upstream about it.
type rateRecord struct {
	Rate    decimal.Decimal `json:"rate"`
	Covered bool            `json:"covered"`
}

// Resolver resolves per-item rates against a price list, with a shared
// per-list cache in front of the ledger API.
type Resolver struct {
	cfg    Config
	store  *kvstore.BestEffort
	ledger commerce.LedgerAPI
	logger *zap.Logger
}

// NewResolver creates a price resolver over the shared store and ledger.
func NewResolver(cfg Config, store *kvstore.BestEffort, ledger commerce.LedgerAPI, logger *zap.Logger) *Resolver {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, store: store, ledger: ledger, logger: logger}
}

// GetRates resolves price entries for the given items against one price
// list. Cached resolutions answer immediately; the remainder is fetched in
// bounded-parallel batches. A failed batch yields "not priced" entries for
// this response without poisoning the cache, so a transient upstream problem
// never becomes a remembered zero price.
func (r *Resolver) GetRates(ctx context.Context, priceListID string, itemIDs []string) (map[string]commerce.PriceEntry, error) {
	if priceListID == "" {
		return nil, commerce.ErrPriceListIDMissing
	}

	result := make(map[string]commerce.PriceEntry, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	cached := r.load(ctx, priceListID)
	var misses []string
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := cached[id]; ok {
			result[id] = rec.toEntry(r.cfg.Currency)
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	resolved, failed := r.fetchBatches(ctx, priceListID, misses)

	for id, rec := range resolved {
		cached[id] = rec
		result[id] = rec.toEntry(r.cfg.Currency)
	}
	// Failed batches degrade this response only; the cache keeps no memory
	// of them so the next request retries.
	for _, id := range failed {
		result[id] = commerce.NotPriced()
	}

	if len(resolved) > 0 {
		r.save(ctx, priceListID, cached)
	}
	return result, nil
}

// Invalidate drops the cached resolutions for one price list, forcing the
// next request to re-resolve from upstream.
func (r *Resolver) Invalidate(ctx context.Context, priceListID string) {
	r.store.Delete(ctx, cacheKey(priceListID))
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (rec rateRecord) toEntry(currency string) commerce.PriceEntry {
	if !rec.Covered {
		return commerce.NotPriced()
	}
	return commerce.NewPriceEntry(rec.Rate, currency)
}

// fetchBatches resolves the given ids in batches of cfg.BatchSize, at most
// cfg.Concurrency batches in flight. It returns the resolved records and the
// ids belonging to batches that failed outright.
func (r *Resolver) fetchBatches(ctx context.Context, priceListID string, itemIDs []string) (map[string]rateRecord, []string) {
	resolved := make(map[string]rateRecord, len(itemIDs))
	var failed []string
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for start := 0; start < len(itemIDs); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(itemIDs))
		batch := itemIDs[start:end]

		g.Go(func() error {
			rates, err := r.ledger.PriceListRates(gctx, priceListID, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("price batch failed, items render unpriced this time",
					zap.String("price_list_id", priceListID),
					zap.Int("batch_size", len(batch)),
					zap.Error(err))
				failed = append(failed, batch...)
				return nil
			}
			for _, id := range batch {
				rate, covered := rates[id]
				resolved[id] = rateRecord{Rate: rate, Covered: covered}
			}
			return nil
		})
	}
	// Workers swallow their errors; Wait only fans in.
	_ = g.Wait()

	return resolved, failed
}

// load reads the per-list cache. Any miss or decode problem reads as an
// empty map.
func (r *Resolver) load(ctx context.Context, priceListID string) map[string]rateRecord {
	raw := r.store.Get(ctx, cacheKey(priceListID))
	if raw == nil {
		return make(map[string]rateRecord)
	}
	var records map[string]rateRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		r.logger.Warn("discarding malformed price cache",
			zap.String("price_list_id", priceListID),
			zap.Error(err))
		return make(map[string]rateRecord)
	}
	if records == nil {
		records = make(map[string]rateRecord)
	}
	return records
}

func (r *Resolver) save(ctx context.Context, priceListID string, records map[string]rateRecord) {
	raw, err := json.Marshal(records)
	if err != nil {
		r.logger.Error("failed to encode price cache", zap.Error(err))
		return
	}
	r.store.SetWithTTL(ctx, cacheKey(priceListID), raw, r.cfg.TTL)
}

func cacheKey(priceListID string) string {
	return fmt.Sprintf("%s%s", cacheKeyPrefix, priceListID)
}
