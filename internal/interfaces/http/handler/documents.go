package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tsh/storefront/internal/domain/commerce"
	"github.com/tsh/storefront/internal/interfaces/http/dto"
)

// DocumentsHandler proxies the customer's sales documents from the ledger.
type DocumentsHandler struct {
	BaseHandler
	ledger commerce.LedgerAPI
}

// NewDocumentsHandler creates a DocumentsHandler.
func NewDocumentsHandler(ledger commerce.LedgerAPI) *DocumentsHandler {
	return &DocumentsHandler{ledger: ledger}
}

// RegisterRoutes registers the document routes.
func (h *DocumentsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders", h.ListOrders)
	rg.GET("/invoices", h.ListInvoices)
}

// ListOrders returns one page of sales orders. A throttled upstream answers
// 503; a dead upstream degrades to an empty page with the degraded flag set,
// because an order-history page that renders empty beats one that errors.
func (h *DocumentsHandler) ListOrders(c *gin.Context) {
	opts, ok := h.bindListOptions(c)
	if !ok {
		return
	}

	orders, hasMore, err := h.ledger.ListSalesOrders(c.Request.Context(), opts)
	if err != nil {
		h.degradedList(c, err, opts)
		return
	}
	if orders == nil {
		orders = []commerce.SalesOrder{}
	}
	h.SuccessWithMeta(c, orders, opts.Page, opts.PerPage, hasMore)
}

// ListInvoices returns one page of invoices, with the same degradation
// rules as ListOrders.
func (h *DocumentsHandler) ListInvoices(c *gin.Context) {
	opts, ok := h.bindListOptions(c)
	if !ok {
		return
	}

	invoices, hasMore, err := h.ledger.ListInvoices(c.Request.Context(), opts)
	if err != nil {
		h.degradedList(c, err, opts)
		return
	}
	if invoices == nil {
		invoices = []commerce.Invoice{}
	}
	h.SuccessWithMeta(c, invoices, opts.Page, opts.PerPage, hasMore)
}

func (h *DocumentsHandler) bindListOptions(c *gin.Context) (commerce.ListOptions, bool) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "invalid list parameters: "+err.Error())
		return commerce.ListOptions{}, false
	}

	opts := commerce.ListOptions{
		Page:       req.Page,
		PerPage:    req.PerPage,
		Status:     req.Status,
		SortColumn: req.SortColumn,
	}
	return opts.Normalize(), true
}

// degradedList turns an upstream failure into the agreed client experience:
// throttling is a retryable 503, anything else is an empty page flagged as
// degraded.
func (h *DocumentsHandler) degradedList(c *gin.Context, err error, opts commerce.ListOptions) {
	if errors.Is(err, commerce.ErrRateLimited) {
		h.DomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, gin.H{"items": []any{}, "degraded": true}, opts.Page, opts.PerPage, false)
}
