package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsh/storefront/internal/application/stock"
	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/interfaces/http/dto"
)

func TestGetItemStock_CacheHit(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{})
	fx.seedStock(t, map[string]int{"item-1": 7})

	w := fx.do(t, http.MethodGet, "/api/v1/products/item-1/stock", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	var result commerce.StockResult
	raw, _ := json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 7, result.Stock)
	assert.Equal(t, commerce.StockSourceCache, result.Source)
	assert.Zero(t, fx.erp.stockHits)
}

func TestGetItemStock_MissFetchesWhenAllowed(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{qty: map[string]int{"item-2": 4}})

	w := fx.do(t, http.MethodGet, "/api/v1/products/item-2/stock?fetch=true", "")

	require.Equal(t, http.StatusOK, w.Code)
	var result commerce.StockResult
	raw, _ := json.Marshal(decodeResponse(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 4, result.Stock)
	assert.Equal(t, commerce.StockSourceAPI, result.Source)
	assert.Equal(t, 1, fx.erp.stockHits)
}

func TestGetItemStock_MissWithFetchDisabled(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{qty: map[string]int{"item-2": 4}})

	w := fx.do(t, http.MethodGet, "/api/v1/products/item-2/stock?fetch=false", "")

	require.Equal(t, http.StatusOK, w.Code)
	var result commerce.StockResult
	raw, _ := json.Marshal(decodeResponse(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, commerce.StockSourceUnavailable, result.Source)
	assert.Zero(t, result.Stock)
	assert.Zero(t, fx.erp.stockHits, "fetch=false must not spend rate budget")
}

func TestGetItemStock_InvalidFetchFlag(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{})

	w := fx.do(t, http.MethodGet, "/api/v1/products/item-1/stock?fetch=maybe", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
}

func TestGetStatus(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{})
	fx.seedStock(t, map[string]int{"a": 1, "b": 2})

	w := fx.do(t, http.MethodGet, "/api/v1/stock/status", "")

	require.Equal(t, http.StatusOK, w.Code)
	var status stock.Status
	raw, _ := json.Marshal(decodeResponse(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.True(t, status.Exists)
	assert.Equal(t, 2, status.ItemCount)
}

func TestFullSyncEndpoint(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{
		items: []commerce.Product{{ItemID: "a"}, {ItemID: "b"}},
		qty:   map[string]int{"a": 3, "b": 0},
	})

	w := fx.do(t, http.MethodPost, "/api/v1/stock/sync", `{"batch_size": 2}`)

	require.Equal(t, http.StatusOK, w.Code)
	var report stock.SyncReport
	raw, _ := json.Marshal(decodeResponse(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Processed)
	assert.Zero(t, report.Errors)
}

func TestFullSyncEndpoint_EmptyBody(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{
		items: []commerce.Product{{ItemID: "a"}},
		qty:   map[string]int{"a": 1},
	})

	w := fx.do(t, http.MethodPost, "/api/v1/stock/sync", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFullSyncEndpoint_LockHeld(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{items: []commerce.Product{{ItemID: "a"}}})

	w1 := fx.do(t, http.MethodPost, "/api/v1/stock/sync", `{"skip_lock": false}`)
	require.Equal(t, http.StatusOK, w1.Code)

	// Hold the lock by hand and try again.
	fx.seedLock(t)
	w2 := fx.do(t, http.MethodPost, "/api/v1/stock/sync", "")

	assert.Equal(t, http.StatusConflict, w2.Code)
	assert.Equal(t, dto.ErrCodeSyncLocked, decodeResponse(t, w2).Error.Code)
}

func TestQuickSyncEndpoint(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{qty: map[string]int{"a": 9}})

	w := fx.do(t, http.MethodPost, "/api/v1/stock/quick-sync", `{"item_ids": ["a"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var report stock.QuickReport
	raw, _ := json.Marshal(decodeResponse(t, w).Data)
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, stock.QuickReport{Updated: 1}, report)
}

func TestQuickSyncEndpoint_MissingBody(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{})

	w := fx.do(t, http.MethodPost, "/api/v1/stock/quick-sync", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{})

	w := fx.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
