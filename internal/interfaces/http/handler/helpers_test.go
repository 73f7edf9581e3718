package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/application/catalog"
	"github.com/tsh/storefront/internal/application/pricing"
	"github.com/tsh/storefront/internal/application/stock"
	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
	"github.com/tsh/storefront/internal/interfaces/http/dto"
	"github.com/tsh/storefront/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeERP stubs both ledger and inventory surfaces for handler tests.
type fakeERP struct {
	mu    sync.Mutex
	items []commerce.Product
	rates map[string]map[string]decimal.Decimal
	qty   map[string]int // warehouse figure per item

	orders    []commerce.SalesOrder
	invoices  []commerce.Invoice
	listErr   error
	orderErr  error
	stockErr  error
	lastOpts  commerce.ListOptions
	stockHits int
}

func (f *fakeERP) ListActiveItems(_ context.Context, page, perPage int) (*commerce.ItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	start := (page - 1) * perPage
	if start >= len(f.items) {
		return &commerce.ItemPage{}, nil
	}
	end := min(start+perPage, len(f.items))
	return &commerce.ItemPage{Items: f.items[start:end], HasMorePage: end < len(f.items)}, nil
}

func (f *fakeERP) PriceListRates(_ context.Context, priceListID string, itemIDs []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]decimal.Decimal)
	for _, id := range itemIDs {
		if rate, ok := f.rates[priceListID][id]; ok {
			out[id] = rate
		}
	}
	return out, nil
}

func (f *fakeERP) ListSalesOrders(_ context.Context, opts commerce.ListOptions) ([]commerce.SalesOrder, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.orderErr != nil {
		return nil, false, f.orderErr
	}
	return f.orders, false, nil
}

func (f *fakeERP) ListInvoices(_ context.Context, opts commerce.ListOptions) ([]commerce.Invoice, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.orderErr != nil {
		return nil, false, f.orderErr
	}
	return f.invoices, false, nil
}

func (f *fakeERP) ItemStock(_ context.Context, itemID string) (*commerce.ItemStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockHits++
	if f.stockErr != nil {
		return nil, f.stockErr
	}
	n, ok := f.qty[itemID]
	if !ok {
		return nil, commerce.ErrUpstreamUnavailable
	}
	return &commerce.ItemStock{
		ItemID: itemID,
		Locations: []commerce.StockLocation{
			{LocationID: "wh-main", AvailableForSale: n},
		},
	}, nil
}

// appFixture is a full application wired over fakes and a memory store.
type appFixture struct {
	engine *gin.Engine
	store  *kvstore.MemoryStore
	erp    *fakeERP
	stock  *stock.Cache
}

func newAppFixture(t *testing.T, erp *fakeERP) *appFixture {
	t.Helper()

	memStore := kvstore.NewMemoryStore()
	best := kvstore.NewBestEffort(memStore, zap.NewNop())

	stockCache, err := stock.New(stock.Config{WarehouseID: "wh-main"}, best, erp, erp, zap.NewNop())
	require.NoError(t, err)

	composer := catalog.NewComposer(
		catalog.New(catalog.Config{}, best, erp, zap.NewNop()),
		stockCache,
		pricing.NewResolver(pricing.Config{}, best, erp, zap.NewNop()),
		zap.NewNop(),
	)

	engine := gin.New()
	router.NewRouter(engine).
		Register(NewCatalogHandler(composer)).
		Register(NewStockHandler(stockCache)).
		Register(NewDocumentsHandler(erp)).
		Setup()
	NewHealthHandler("test").Register(engine)

	return &appFixture{engine: engine, store: memStore, erp: erp, stock: stockCache}
}

func (fx *appFixture) seedStock(t *testing.T, figures map[string]int) {
	t.Helper()
	raw, err := json.Marshal(commerce.NewStockSnapshot(figures, time.Now()))
	require.NoError(t, err)
	require.NoError(t, fx.store.SetWithTTL(context.Background(), stock.DefaultCacheKey, raw, time.Hour))
}

func (fx *appFixture) seedLock(t *testing.T) {
	t.Helper()
	ok, err := fx.store.SetIfNotExists(context.Background(), stock.DefaultLockKey, []byte("held"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func (fx *appFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
