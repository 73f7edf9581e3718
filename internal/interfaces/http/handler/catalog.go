package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tsh/storefront/internal/application/catalog"
)

// CatalogHandler serves the composed product listings.
type CatalogHandler struct {
	BaseHandler
	composer *catalog.Composer
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(composer *catalog.Composer) *CatalogHandler {
	return &CatalogHandler{composer: composer}
}

// RegisterRoutes registers the catalog routes.
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.ListProducts)
}

// ListProducts returns every active product with its stock figure, and with
// prices when the caller names a price list.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	priceListID := c.Query("price_list_id")
	if priceListID == "" {
		h.Success(c, h.composer.GetAllProductsComplete(c.Request.Context()))
		return
	}

	views, err := h.composer.GetProductsWithPrices(c.Request.Context(), priceListID)
	if err != nil {
		h.DomainError(c, err)
		return
	}
	h.Success(c, views)
}
