package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tsh/storefront/internal/interfaces/http/dto"
	"github.com/tsh/storefront/internal/interfaces/http/middleware"
)

// BaseHandler provides the shared response helpers.
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a 200 envelope.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 envelope with paging meta.
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, page, perPage int, hasMore bool) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, page, perPage, hasMore))
}

// Error sends an error envelope with an explicit status code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// DomainError sends the envelope mapped from a domain error, deriving the
// status from the error code.
func (h *BaseHandler) DomainError(c *gin.Context, err error) {
	code, message := dto.MapDomainError(err)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 envelope.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 envelope.
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}
