package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsh/storefront/internal/application/catalog"
	"github.com/tsh/storefront/internal/domain/commerce"
)

func decodeViews(t *testing.T, data interface{}) map[string]catalog.ProductView {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var views []catalog.ProductView
	require.NoError(t, json.Unmarshal(raw, &views))
	byID := make(map[string]catalog.ProductView, len(views))
	for _, v := range views {
		byID[v.ItemID] = v
	}
	return byID
}

func TestListProducts(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{
		items: []commerce.Product{{ItemID: "a", Name: "Alpha"}, {ItemID: "b", Name: "Beta"}},
	})
	fx.seedStock(t, map[string]int{"a": 11})

	w := fx.do(t, http.MethodGet, "/api/v1/products", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	byID := decodeViews(t, resp.Data)
	require.Len(t, byID, 2)
	assert.Equal(t, 11, byID["a"].Stock)
	assert.Equal(t, 0, byID["b"].Stock)
	assert.Nil(t, byID["a"].Price)
}

func TestListProducts_WithPriceList(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{
		items: []commerce.Product{{ItemID: "a"}, {ItemID: "b"}},
		rates: map[string]map[string]decimal.Decimal{
			"pl-7": {"a": decimal.RequireFromString("1250")},
		},
	})
	fx.seedStock(t, map[string]int{"a": 1})

	w := fx.do(t, http.MethodGet, "/api/v1/products?price_list_id=pl-7", "")

	require.Equal(t, http.StatusOK, w.Code)
	byID := decodeViews(t, decodeResponse(t, w).Data)

	require.NotNil(t, byID["a"].Price)
	assert.True(t, byID["a"].Price.InPriceList)
	assert.True(t, byID["a"].Price.Rate.Equal(decimal.RequireFromString("1250")))

	require.NotNil(t, byID["b"].Price)
	assert.False(t, byID["b"].Price.InPriceList, "an item outside the list renders contact-for-price")
}

func TestListProducts_EmptyCatalogDegrades(t *testing.T) {
	fx := newAppFixture(t, &fakeERP{listErr: commerce.ErrUpstreamUnavailable})

	w := fx.do(t, http.MethodGet, "/api/v1/products", "")

	require.Equal(t, http.StatusOK, w.Code, "a broken catalog renders empty, not as an error page")
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	byID := decodeViews(t, resp.Data)
	assert.Empty(t, byID)
}
