// Package commerce contains the storefront's commerce bounded context.
// This context models the catalog, pricing, and stock figures the storefront
// reconciles between the backing ERP and the shared key-value store.
//
// Key concepts:
//   - Product: catalog metadata (name, SKU, category); never carries authoritative stock
//   - ItemStock: per-location stock breakdown as reported by the ERP inventory surface
//   - StockSnapshot: the warehouse-scoped stock map held in the shared cache
//   - PriceEntry: a per-price-list rate; absence from a list is a distinct state
//
// Design Pattern: Ports & Adapters
//   - Ports (LedgerAPI, InventoryAPI) are defined here in the domain layer
//   - Adapters (the rate-limited ERP client) are in the infrastructure layer
package commerce
