package dto

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsh/storefront/internal/domain/commerce"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{ErrCodeUpstreamDown, http.StatusBadGateway},
		{ErrCodeSyncLocked, http.StatusConflict},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"ERR_NEVER_HEARD_OF_IT", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
	}{
		{commerce.ErrRateLimited, ErrCodeUpstreamRateLimited},
		{fmt.Errorf("call failed: %w", commerce.ErrRateLimited), ErrCodeUpstreamRateLimited},
		{commerce.ErrUpstreamUnavailable, ErrCodeUpstreamDown},
		{commerce.ErrInvalidResponse, ErrCodeUpstreamDown},
		{commerce.ErrSyncLocked, ErrCodeSyncLocked},
		{commerce.ErrPriceListIDMissing, ErrCodeValidation},
		{fmt.Errorf("something else"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			code, message := MapDomainError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.NotEmpty(t, message)
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "item not found", "req-123")

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "item not found", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}
