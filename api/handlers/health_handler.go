package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/nicedowns-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	orchestrator *app.Orchestrator
	catalog      PlatformCatalog
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orchestrator *app.Orchestrator, catalog PlatformCatalog) *HealthHandler {
	return &HealthHandler{
		orchestrator: orchestrator,
		catalog:      catalog,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Pipeline struct {
		HasSubmission bool `json:"has_submission"`
		InFlight      int  `json:"in_flight"`
	} `json:"pipeline"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Pipeline.HasSubmission = h.orchestrator.Current() != nil
	response.Pipeline.InFlight = len(h.orchestrator.InFlight())

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if len(h.catalog.SupportedPlatforms()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no provider chains configured",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
