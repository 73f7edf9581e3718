package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
)

// maxResponseSize caps how much of an upstream response is read (10MB).
const maxResponseSize = 10 * 1024 * 1024

// rateLimitBackoff returns the exponential delay before retry attempt n
// (1-based): 2s, 4s, 8s.
func rateLimitBackoff(attempt int) time.Duration {
	return DefaultRateLimitBaseDelay << (attempt - 1)
}

// isRateLimitErr reports whether err is (or wraps) the throttle marker.
func isRateLimitErr(err error) bool {
	return errors.Is(err, commerce.ErrRateLimited)
}

// Client is the rate-limited adapter for the backing ERP's two API surfaces:
// the high-budget ledger API (catalog, price lists, sales documents) and the
// low-budget inventory API (the only source of per-warehouse stock
// breakdowns). It implements commerce.LedgerAPI and commerce.InventoryAPI.
type Client struct {
	cfg        Config
	tokens     *TokenProvider
	governor   *Governor
	httpClient *http.Client
	logger     *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates the ERP client. The shared cache feeds the token
// provider; the governor throttles every outgoing call.
func NewClient(cfg Config, cache *kvstore.BestEffort, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		tokens:     NewTokenProvider(cfg, cache, logger.Named("token")),
		governor:   NewGovernor(cfg.RequestsPerMinute, time.Minute),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// Tokens exposes the token provider, for wiring and tests.
func (c *Client) Tokens() *TokenProvider {
	return c.tokens
}

// ---------------------------------------------------------------------------
// Ledger surface
// ---------------------------------------------------------------------------

// ListActiveItems returns one page of the active-item listing.
func (c *Client) ListActiveItems(ctx context.Context, page, perPage int) (*commerce.ItemPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("status", "active")

	var resp itemListResponse
	if err := c.call(ctx, c.cfg.LedgerBaseURL, "/items", query, &resp); err != nil {
		return nil, err
	}

	result := &commerce.ItemPage{
		Items:       make([]commerce.Product, 0, len(resp.Items)),
		HasMorePage: resp.PageContext.HasMorePage,
	}
	for _, item := range resp.Items {
		result.Items = append(result.Items, item.toProduct())
	}
	return result, nil
}

// PriceListRates returns the rates a price list defines for the given ids.
// Ids the list does not cover are absent from the result; that absence is
// authoritative and no generic list price fills the gap.
func (c *Client) PriceListRates(ctx context.Context, priceListID string, itemIDs []string) (map[string]decimal.Decimal, error) {
	if priceListID == "" {
		return nil, commerce.ErrPriceListIDMissing
	}

	query := url.Values{}
	query.Set("item_ids", strings.Join(itemIDs, ","))

	var resp priceBookResponse
	if err := c.call(ctx, c.cfg.LedgerBaseURL, "/pricebooks/"+url.PathEscape(priceListID), query, &resp); err != nil {
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(resp.Pricebook.Items))
	for _, entry := range resp.Pricebook.Items {
		rates[entry.ItemID] = entry.PricebookRate
	}
	return rates, nil
}

// ListSalesOrders returns one page of the customer's sales orders.
func (c *Client) ListSalesOrders(ctx context.Context, opts commerce.ListOptions) ([]commerce.SalesOrder, bool, error) {
	var resp salesOrderListResponse
	if err := c.call(ctx, c.cfg.LedgerBaseURL, "/salesorders", listQuery(opts), &resp); err != nil {
		return nil, false, err
	}

	orders := make([]commerce.SalesOrder, 0, len(resp.SalesOrders))
	for _, so := range resp.SalesOrders {
		orders = append(orders, commerce.SalesOrder{
			OrderID:     so.SalesOrderID,
			OrderNumber: so.Number,
			Date:        so.Date,
			Status:      so.Status,
			Total:       so.Total,
			Currency:    so.CurrencyCode,
		})
	}
	return orders, resp.PageContext.HasMorePage, nil
}

// ListInvoices returns one page of the customer's invoices.
func (c *Client) ListInvoices(ctx context.Context, opts commerce.ListOptions) ([]commerce.Invoice, bool, error) {
	var resp invoiceListResponse
	if err := c.call(ctx, c.cfg.LedgerBaseURL, "/invoices", listQuery(opts), &resp); err != nil {
		return nil, false, err
	}

	invoices := make([]commerce.Invoice, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		invoices = append(invoices, commerce.Invoice{
			InvoiceID:     inv.InvoiceID,
			InvoiceNumber: inv.Number,
			Date:          inv.Date,
			DueDate:       inv.DueDate,
			Status:        inv.Status,
			Total:         inv.Total,
			Balance:       inv.Balance,
			Currency:      inv.CurrencyCode,
		})
	}
	return invoices, resp.PageContext.HasMorePage, nil
}

// ---------------------------------------------------------------------------
// Inventory surface
// ---------------------------------------------------------------------------

// ItemStock returns the per-location breakdown for a single item. This is
// the low-budget surface; only sync and backfill paths call it.
func (c *Client) ItemStock(ctx context.Context, itemID string) (*commerce.ItemStock, error) {
	var resp itemStockResponse
	if err := c.call(ctx, c.cfg.InventoryBaseURL, "/items/"+url.PathEscape(itemID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toItemStock(), nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// envelope lets call inspect any typed response through its embedded header.
type envelope interface {
	IsSuccess() bool
	IsRateLimited() bool
}

// call performs one governed GET against an API surface, decoding into out.
// Rate-limit answers retry with exponential backoff up to the configured
// ceiling; every other failure propagates immediately.
func (c *Client) call(ctx context.Context, baseURL, path string, query url.Values, out envelope) error {
	for attempt := 0; ; attempt++ {
		err := c.callOnce(ctx, baseURL, path, query, out)
		if err == nil {
			return nil
		}
		if !isRateLimitErr(err) || attempt >= c.cfg.MaxRateLimitRetry {
			return err
		}

		delay := rateLimitBackoff(attempt + 1)
		c.logger.Warn("upstream throttled, backing off",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (c *Client) callOnce(ctx context.Context, baseURL, path string, query url.Values, out envelope) error {
	if err := c.governor.Acquire(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("organization_id", c.cfg.OrgID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("erp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", commerce.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", commerce.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429 on %s", commerce.ErrRateLimited, path)
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return fmt.Errorf("%w: HTTP 401 on %s", commerce.ErrAuthFailed, path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d on %s", commerce.ErrUpstreamUnavailable, resp.StatusCode, path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", commerce.ErrInvalidResponse, err)
	}
	if out.IsRateLimited() {
		return fmt.Errorf("%w: provider code on %s", commerce.ErrRateLimited, path)
	}
	if !out.IsSuccess() {
		return fmt.Errorf("%w: provider rejected %s", commerce.ErrUpstreamUnavailable, path)
	}
	return nil
}

// listQuery translates ListOptions into the ledger's pagination parameters.
func listQuery(opts commerce.ListOptions) url.Values {
	opts = opts.Normalize()

	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.Page))
	query.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.SortColumn != "" {
		query.Set("sort_column", opts.SortColumn)
	}
	return query
}

// Ensure Client implements both ERP surfaces
var _ commerce.LedgerAPI = (*Client)(nil)
var _ commerce.InventoryAPI = (*Client)(nil)
