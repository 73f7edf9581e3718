package commerce

import "github.com/shopspring/decimal"

// PriceEntry is an item's resolved price for one price list.
//
// Invariant: InPriceList == false implies Rate is zero, and the storefront
// renders "contact for price" rather than a zero amount. There is no fallback
// to a generic list-price field: absence from the list is a state of its own.
type PriceEntry struct {
	Rate        decimal.Decimal `json:"rate"`
	Currency    string          `json:"currency"`
	InPriceList bool            `json:"in_price_list"`
}

// NewPriceEntry builds an entry for an item the price list actually covers.
func NewPriceEntry(rate decimal.Decimal, currency string) PriceEntry {
	return PriceEntry{Rate: rate, Currency: currency, InPriceList: true}
}

// NotPriced is the entry for an item absent from the price list.
func NotPriced() PriceEntry {
	return PriceEntry{Rate: decimal.Zero, InPriceList: false}
}
