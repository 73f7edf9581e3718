package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tsh/storefront/internal/application/stock"
	"github.com/tsh/storefront/internal/interfaces/http/dto"
)

// StockHandler serves stock lookups and drives sync runs.
type StockHandler struct {
	BaseHandler
	stock *stock.Cache
}

// NewStockHandler creates a StockHandler.
func NewStockHandler(stockCache *stock.Cache) *StockHandler {
	return &StockHandler{stock: stockCache}
}

// RegisterRoutes registers the stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products/:id/stock", h.GetItemStock)
	rg.GET("/stock/status", h.GetStatus)
	rg.POST("/stock/sync", h.FullSync)
	rg.POST("/stock/quick-sync", h.QuickSync)
}

// GetItemStock resolves one item's stock figure. The fetch query parameter
// controls whether a cache miss may spend rate budget on a live lookup;
// it defaults to true because this endpoint backs the product detail page.
func (h *StockHandler) GetItemStock(c *gin.Context) {
	itemID := c.Param("id")
	if itemID == "" {
		h.BadRequest(c, "item id is required")
		return
	}

	fetch := true
	if raw := c.Query("fetch"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "fetch must be true or false")
			return
		}
		fetch = parsed
	}

	h.Success(c, h.stock.GetSingle(c.Request.Context(), itemID, fetch))
}

// GetStatus reports the snapshot's existence, size, and staleness.
func (h *StockHandler) GetStatus(c *gin.Context) {
	h.Success(c, h.stock.Status(c.Request.Context()))
}

// SyncRequest is the body for a full sync run.
type SyncRequest struct {
	BatchSize         int  `json:"batch_size" binding:"omitempty,min=1,max=100"`
	InterBatchDelayMS int  `json:"inter_batch_delay_ms" binding:"omitempty,min=0,max=60000"`
	MaxItems          int  `json:"max_items" binding:"omitempty,min=1"`
	Offset            int  `json:"offset" binding:"omitempty,min=0"`
	SkipLock          bool `json:"skip_lock"`
}

// FullSync runs a (possibly chunked) full stock sync. A run skipped because
// the lock is held answers 409 so orchestrators can back off.
func (h *StockHandler) FullSync(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "invalid sync request: "+err.Error())
			return
		}
	}

	report := h.stock.FullSync(c.Request.Context(), stock.SyncOptions{
		BatchSize:       req.BatchSize,
		InterBatchDelay: time.Duration(req.InterBatchDelayMS) * time.Millisecond,
		MaxItems:        req.MaxItems,
		Offset:          req.Offset,
		SkipLock:        req.SkipLock,
	})
	if report.Skipped {
		h.Error(c, http.StatusConflict, dto.ErrCodeSyncLocked, "a stock sync is already running")
		return
	}
	h.Success(c, report)
}

// QuickSyncRequest is the body for a targeted refresh.
type QuickSyncRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1,max=100,dive,required"`
}

// QuickSync refreshes the named items without a full listing walk.
func (h *StockHandler) QuickSync(c *gin.Context) {
	var req QuickSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "item_ids is required")
		return
	}
	h.Success(c, h.stock.QuickSync(c.Request.Context(), req.ItemIDs))
}
