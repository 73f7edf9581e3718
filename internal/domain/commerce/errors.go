package commerce

import "errors"

// ---------------------------------------------------------------------------
// Error Taxonomy
// ---------------------------------------------------------------------------

var (
	// Upstream errors
	ErrRateLimited         = errors.New("commerce: upstream rate limited")
	ErrUpstreamUnavailable = errors.New("commerce: upstream unavailable")
	ErrInvalidResponse     = errors.New("commerce: invalid upstream response")
	ErrAuthFailed          = errors.New("commerce: upstream authentication failed")

	// Cache errors
	ErrCacheUnavailable = errors.New("commerce: shared cache unavailable")

	// Safeguard errors
	ErrEmptyCatalog = errors.New("commerce: upstream returned an empty catalog")

	// Sync errors
	ErrSyncLocked = errors.New("commerce: stock sync already in progress")

	// Configuration errors
	ErrNotConfigured      = errors.New("commerce: missing upstream credentials")
	ErrWarehouseMismatch  = errors.New("commerce: configured warehouse not known to upstream")
	ErrWarehouseNotSet    = errors.New("commerce: fulfillment warehouse not configured")
	ErrPriceListIDMissing = errors.New("commerce: price list id is required")
)
