// Package catalog caches the active-product listing and composes products
// with their stock and price views for the storefront read paths.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

// Default catalog cache parameters.
const (
	DefaultCacheKey = "catalog:products"
	DefaultTTL      = 24 * time.Hour

	listingPerPage  = 200
	maxListingPages = 50
)

// Config holds the product metadata cache settings.
type Config struct {
	CacheKey string
	TTL      time.Duration
}

func (c *Config) applyDefaults() {
	if c.CacheKey == "" {
		c.CacheKey = DefaultCacheKey
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Cache is the product metadata cache: one shared snapshot of the active
// catalog, refreshed from the ledger listing at most once per TTL.
type Cache struct {
	cfg    Config
	store  *kvstore.BestEffort
	ledger commerce.LedgerAPI
	logger *zap.Logger
}

// New creates a product metadata cache over the shared store and ledger.
func New(cfg Config, store *kvstore.BestEffort, ledger commerce.LedgerAPI, logger *zap.Logger) *Cache {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{cfg: cfg, store: store, ledger: ledger, logger: logger}
}

// GetAll returns the active catalog, from cache when possible. A miss walks
// the upstream listing and persists the result.
//
// An empty upstream answer is treated as an upstream fault, not an empty
// store: it is never persisted, so a transient ERP hiccup cannot blank the
// storefront for a whole TTL.
func (c *Cache) GetAll(ctx context.Context) ([]commerce.Product, error) {
	if products := c.load(ctx); products != nil {
		return products, nil
	}

	products, err := c.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, commerce.ErrEmptyCatalog
	}

	c.save(ctx, products)
	return products, nil
}

// GetAllSafe is GetAll with the empty-catalog safeguard downgraded to a
// logged degradation: callers rendering a listing page get an empty slice
// and a usable page instead of an error page.
func (c *Cache) GetAllSafe(ctx context.Context) []commerce.Product {
	products, err := c.GetAll(ctx)
	if err != nil {
		c.logger.Warn("catalog unavailable, rendering empty listing", zap.Error(err))
		return []commerce.Product{}
	}
	return products
}

// Refresh forces a fetch-and-store pass regardless of cache state. The
// non-empty safeguard still applies: an empty upstream answer leaves the
// cached catalog in place.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	products, err := c.fetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, commerce.ErrEmptyCatalog
	}
	c.save(ctx, products)
	return len(products), nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (c *Cache) fetchAll(ctx context.Context) ([]commerce.Product, error) {
	var products []commerce.Product
	for page := 1; page <= maxListingPages; page++ {
		result, err := c.ledger.ListActiveItems(ctx, page, listingPerPage)
		if err != nil {
			return nil, err
		}
		products = append(products, result.Items...)
		if !result.HasMorePage {
			return products, nil
		}
	}
	c.logger.Warn("catalog listing hit the page ceiling",
		zap.Int("pages", maxListingPages),
		zap.Int("items", len(products)))
	return products, nil
}

func (c *Cache) load(ctx context.Context) []commerce.Product {
	raw := c.store.Get(ctx, c.cfg.CacheKey)
	if raw == nil {
		return nil
	}
	var products []commerce.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.logger.Warn("discarding malformed catalog cache", zap.Error(err))
		return nil
	}
	if len(products) == 0 {
		// A persisted empty catalog should be impossible; treat it as a miss.
		return nil
	}
	return products
}

func (c *Cache) save(ctx context.Context, products []commerce.Product) {
	raw, err := json.Marshal(products)
	if err != nil {
		c.logger.Error("failed to encode catalog cache", zap.Error(err))
		return
	}
	c.store.SetWithTTL(ctx, c.cfg.CacheKey, raw, c.cfg.TTL)
}
