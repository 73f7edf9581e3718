package erp

import (
	"github.com/shopspring/decimal"

	"github.com/tsh/storefront/internal/domain/commerce"
)

// Provider envelope codes. Code zero is success; the rate-limit code shows up
// on throttled calls that still answer HTTP 200.
const (
	apiCodeSuccess     = 0
	apiCodeRateLimited = 4820
)

// apiEnvelope is the provider's common response wrapper.
type apiEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsSuccess returns true when the provider accepted the request.
func (e *apiEnvelope) IsSuccess() bool {
	return e.Code == apiCodeSuccess
}

// IsRateLimited returns true when the envelope carries the throttle marker.
func (e *apiEnvelope) IsRateLimited() bool {
	return e.Code == apiCodeRateLimited
}

// pageContext carries the provider's pagination cursor state.
type pageContext struct {
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	HasMorePage bool `json:"has_more_page"`
}

// apiItem is one row of the ledger item listing.
type apiItem struct {
	ItemID       string `json:"item_id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	CategoryName string `json:"category_name"`
	Brand        string `json:"brand"`
	Unit         string `json:"unit"`
	ImageURL     string `json:"image_url"`
	Status       string `json:"status"`
}

func (i apiItem) toProduct() commerce.Product {
	return commerce.Product{
		ItemID:   i.ItemID,
		Name:     i.Name,
		SKU:      i.SKU,
		Category: i.CategoryName,
		Brand:    i.Brand,
		Unit:     i.Unit,
		ImageURL: i.ImageURL,
		Status:   i.Status,
	}
}

// itemListResponse is the ledger item listing envelope.
type itemListResponse struct {
	apiEnvelope
	Items       []apiItem   `json:"items"`
	PageContext pageContext `json:"page_context"`
}

// priceBookRate is one item's rate inside a price list.
type priceBookRate struct {
	ItemID        string          `json:"item_id"`
	PricebookRate decimal.Decimal `json:"pricebook_rate"`
	Currency      string          `json:"currency_code"`
}

// priceBookResponse is the price-list rates envelope.
type priceBookResponse struct {
	apiEnvelope
	Pricebook struct {
		PricebookID string          `json:"pricebook_id"`
		Items       []priceBookRate `json:"pricebook_items"`
	} `json:"pricebook"`
}

// itemStockResponse is the inventory surface's item detail envelope, the only
// place per-warehouse breakdowns appear.
type itemStockResponse struct {
	apiEnvelope
	Item struct {
		ItemID           string `json:"item_id"`
		AvailableForSale int    `json:"available_for_sale_stock"`
		Locations        []struct {
			LocationID       string `json:"location_id"`
			LocationName     string `json:"location_name"`
			AvailableForSale int    `json:"location_available_for_sale_stock"`
		} `json:"locations"`
	} `json:"item"`
}

func (r *itemStockResponse) toItemStock() *commerce.ItemStock {
	stock := &commerce.ItemStock{
		ItemID:         r.Item.ItemID,
		TotalAvailable: r.Item.AvailableForSale,
		Locations:      make([]commerce.StockLocation, 0, len(r.Item.Locations)),
	}
	for _, loc := range r.Item.Locations {
		stock.Locations = append(stock.Locations, commerce.StockLocation{
			LocationID:       loc.LocationID,
			LocationName:     loc.LocationName,
			AvailableForSale: loc.AvailableForSale,
		})
	}
	return stock
}

// salesOrderListResponse is the ledger sales-order listing envelope.
type salesOrderListResponse struct {
	apiEnvelope
	SalesOrders []struct {
		SalesOrderID string          `json:"salesorder_id"`
		Number       string          `json:"salesorder_number"`
		Date         string          `json:"date"`
		Status       string          `json:"status"`
		Total        decimal.Decimal `json:"total"`
		CurrencyCode string          `json:"currency_code"`
	} `json:"salesorders"`
	PageContext pageContext `json:"page_context"`
}

// invoiceListResponse is the ledger invoice listing envelope.
type invoiceListResponse struct {
	apiEnvelope
	Invoices []struct {
		InvoiceID    string          `json:"invoice_id"`
		Number       string          `json:"invoice_number"`
		Date         string          `json:"date"`
		DueDate      string          `json:"due_date"`
		Status       string          `json:"status"`
		Total        decimal.Decimal `json:"total"`
		Balance      decimal.Decimal `json:"balance"`
		CurrencyCode string          `json:"currency_code"`
	} `json:"invoices"`
	PageContext pageContext `json:"page_context"`
}

// tokenResponse is the identity endpoint's refresh-grant answer.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}
