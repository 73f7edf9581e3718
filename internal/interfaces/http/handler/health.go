package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Register attaches the probe to the engine root, outside the versioned API.
func (h *HealthHandler) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.Healthz)
}

// Healthz answers 200 while the process is serving.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}
