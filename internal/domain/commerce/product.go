package commerce

import "github.com/shopspring/decimal"

// Product is an item's catalog metadata as listed by the ERP ledger surface.
// It deliberately carries no authoritative stock figure: stock is always
// resolved through the stock reconciliation cache, so a long-lived metadata
// cache can never bake in a stale count.
type Product struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Unit     string `json:"unit"`
	ImageURL string `json:"image_url"`
	Status   string `json:"status"`
}

// IsActive returns true if the item is sellable on the storefront.
func (p Product) IsActive() bool {
	return p.Status == "" || p.Status == "active"
}

// ItemPage is one page of the ledger's item listing.
type ItemPage struct {
	Items       []Product
	HasMorePage bool
}

// ---------------------------------------------------------------------------
// Sales documents (read-only portal views)
// ---------------------------------------------------------------------------

// SalesOrder is a customer order as reported by the ledger surface.
type SalesOrder struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
}

// Invoice is a customer invoice as reported by the ledger surface.
type Invoice struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	DueDate       string          `json:"due_date"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
}

// ListOptions carries the ledger listing pagination and filter parameters.
type ListOptions struct {
	Page       int
	PerPage    int
	Status     string
	SortColumn string
}

// Normalize clamps the options to the ledger's supported ranges.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = 25
	}
	if o.PerPage > 200 {
		o.PerPage = 200
	}
	return o
}
