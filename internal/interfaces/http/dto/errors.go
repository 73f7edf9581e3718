package dto

import (
	"errors"
	"net/http"

	"github.com/tsh/storefront/internal/domain/commerce"
)

// Error code constants.
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeNotFound   = "ERR_NOT_FOUND"

	// ErrCodeUpstreamRateLimited is distinct from a client-side 429: the
	// backing ERP throttled us, so the client should retry later rather
	// than slow down.
	ErrCodeUpstreamRateLimited = "ERR_UPSTREAM_RATE_LIMITED"
	ErrCodeUpstreamDown        = "ERR_UPSTREAM_DOWN"
	ErrCodeSyncLocked          = "ERR_SYNC_LOCKED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,

	// The ERP throttling us is our unavailability, not the client's fault.
	ErrCodeUpstreamRateLimited: http.StatusServiceUnavailable,
	ErrCodeUpstreamDown:        http.StatusBadGateway,
	ErrCodeSyncLocked:          http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to
// 500 for codes it does not know.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// MapDomainError translates a domain error into an API error code and a
// client-facing message.
func MapDomainError(err error) (code, message string) {
	switch {
	case errors.Is(err, commerce.ErrRateLimited):
		return ErrCodeUpstreamRateLimited, "the store is experiencing high demand, please try again shortly"
	case errors.Is(err, commerce.ErrUpstreamUnavailable), errors.Is(err, commerce.ErrInvalidResponse):
		return ErrCodeUpstreamDown, "the backing system is temporarily unavailable"
	case errors.Is(err, commerce.ErrSyncLocked):
		return ErrCodeSyncLocked, "a stock sync is already running"
	case errors.Is(err, commerce.ErrPriceListIDMissing):
		return ErrCodeValidation, "price_list_id is required"
	default:
		return ErrCodeInternal, "internal error"
	}
}
