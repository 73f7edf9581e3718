package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/application/pricing"
	"github.com/tsh/storefront/internal/application/stock"
	"github.com/tsh/storefront/internal/domain/commerce"
)

// coldAlarmMinItems is the catalog size below which a cold stock cache is
// unremarkable; above it, more misses than hits means the sync pipeline is
// not keeping up and deserves a warning.
const coldAlarmMinItems = 20

// ProductView is a catalog entry composed with its stock and, optionally,
// its price for the requesting customer's price list.
type ProductView struct {
	commerce.Product
	Stock int                  `json:"stock"`
	Price *commerce.PriceEntry `json:"price,omitempty"`
}

// Composer joins the three caches into the storefront's listing views.
type Composer struct {
	catalog *Cache
	stock   *stock.Cache
	pricing *pricing.Resolver
	logger  *zap.Logger
}

// NewComposer wires the composition layer over the three caches.
func NewComposer(catalog *Cache, stockCache *stock.Cache, resolver *pricing.Resolver, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{catalog: catalog, stock: stockCache, pricing: resolver, logger: logger}
}

// GetAllProductsComplete returns every active product with its stock figure.
// Stock comes from the reconciliation snapshot only; when the snapshot is
// empty every figure is forced to zero, because "we don't know" must read as
// out of stock, never as available.
func (c *Composer) GetAllProductsComplete(ctx context.Context) []ProductView {
	products := c.catalog.GetAllSafe(ctx)
	if len(products) == 0 {
		return []ProductView{}
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ItemID)
	}

	stockByID := c.resolveStock(ctx, ids)

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Product: p, Stock: stockByID[p.ItemID]})
	}
	return views
}

// GetProductsWithPrices is GetAllProductsComplete plus the customer's price
// list. Items the list does not cover carry InPriceList=false and render as
// "contact for price".
func (c *Composer) GetProductsWithPrices(ctx context.Context, priceListID string) ([]ProductView, error) {
	views := c.GetAllProductsComplete(ctx)
	if len(views) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ItemID)
	}

	rates, err := c.pricing.GetRates(ctx, priceListID, ids)
	if err != nil {
		return nil, err
	}

	for i := range views {
		entry, ok := rates[views[i].ItemID]
		if !ok {
			entry = commerce.NotPriced()
		}
		views[i].Price = &entry
	}
	return views, nil
}

// resolveStock reads the bulk stock figures and raises the cold-cache alarm
// when misses dominate on a real catalog.
func (c *Composer) resolveStock(ctx context.Context, ids []string) map[string]int {
	status := c.stock.Status(ctx)
	if !status.Exists {
		c.logger.Warn("stock snapshot missing, forcing all figures to zero; run a stock sync",
			zap.Int("items", len(ids)))
		zeroes := make(map[string]int, len(ids))
		for _, id := range ids {
			zeroes[id] = 0
		}
		return zeroes
	}

	figures, stats := c.stock.GetBulk(ctx, ids)
	if len(ids) >= coldAlarmMinItems && stats.Misses > stats.Hits {
		c.logger.Warn("stock cache mostly cold for this listing",
			zap.Int("items", len(ids)),
			zap.Int("hits", stats.Hits),
			zap.Int("misses", stats.Misses))
	}
	return figures
}
