package commerce

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerAPI is the high-rate-limit ERP surface: catalog listing, price lists,
// and sales documents. Implemented by the rate-limited client in the
// infrastructure layer.
type LedgerAPI interface {
	// ListActiveItems returns one page of the active-item listing.
	ListActiveItems(ctx context.Context, page, perPage int) (*ItemPage, error)

	// PriceListRates returns the per-item rates a price list defines for the
	// given ids. Ids the list does not cover are absent from the result map;
	// that absence is authoritative.
	PriceListRates(ctx context.Context, priceListID string, itemIDs []string) (map[string]decimal.Decimal, error)

	// ListSalesOrders returns one page of the customer's sales orders.
	ListSalesOrders(ctx context.Context, opts ListOptions) ([]SalesOrder, bool, error)

	// ListInvoices returns one page of the customer's invoices.
	ListInvoices(ctx context.Context, opts ListOptions) ([]Invoice, bool, error)
}

// InventoryAPI is the low-rate-limit ERP surface and the only source of
// per-warehouse stock breakdowns. Used exclusively by sync and backfill
// paths, never on hot read paths.
type InventoryAPI interface {
	// ItemStock returns the per-location breakdown for a single item.
	ItemStock(ctx context.Context, itemID string) (*ItemStock, error)
}
