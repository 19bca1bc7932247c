package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/internal/app"
	"github.com/yourusername/nicedowns-go/internal/domain"
)

// PlatformCatalog describes which platforms can be resolved and how
type PlatformCatalog interface {
	SupportedPlatforms() []domain.Platform
	Chain(platform domain.Platform) []string
}

// SubmissionHandler handles submission and delivery requests
type SubmissionHandler struct {
	orchestrator *app.Orchestrator
	catalog      PlatformCatalog
	logger       *zap.Logger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(orchestrator *app.Orchestrator, catalog PlatformCatalog, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		orchestrator: orchestrator,
		catalog:      catalog,
		logger:       logger,
	}
}

// SubmitRequest represents a request to resolve input
type SubmitRequest struct {
	Input string `json:"input" binding:"required"`
}

// DeliverRequest represents a request to deliver one asset
type DeliverRequest struct {
	Filename string `json:"filename,omitempty"`
}

// PlatformInfo describes one supported platform
type PlatformInfo struct {
	Platform    domain.Platform `json:"platform"`
	DisplayName string          `json:"display_name"`
	Providers   []string        `json:"providers"`
}

// Submit handles POST /api/v1/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   string(domain.KindInvalidInput),
			Message: domain.UserMessage(domain.ErrInvalidInput),
		})
		return
	}

	sub, err := h.orchestrator.Submit(c.Request.Context(), req.Input)
	if err != nil {
		resp := newErrorResponse(err)
		resp.Submission = sub
		c.JSON(statusFor(err), resp)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// Current handles GET /api/v1/submissions/current
func (h *SubmissionHandler) Current(c *gin.Context) {
	sub := h.orchestrator.Current()
	if sub == nil {
		c.JSON(http.StatusNotFound, newErrorResponse(domain.ErrNoSubmission))
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Reset handles DELETE /api/v1/submissions/current
func (h *SubmissionHandler) Reset(c *gin.Context) {
	h.orchestrator.ResetSubmission()
	c.Status(http.StatusNoContent)
}

// Deliver handles POST /api/v1/submissions/current/assets/:assetId/deliver
func (h *SubmissionHandler) Deliver(c *gin.Context) {
	assetID := c.Param("assetId")

	var req DeliverRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	attempt, err := h.orchestrator.RequestDelivery(c.Request.Context(), assetID, req.Filename)
	if err != nil {
		h.logger.Warn("Delivery request failed",
			zap.String("asset_id", assetID),
			zap.Error(err))
		resp := newErrorResponse(err)
		resp.Attempt = attempt
		c.JSON(statusFor(err), resp)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// InFlight handles GET /api/v1/deliveries/in-flight
func (h *SubmissionHandler) InFlight(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.InFlight())
}

// History handles GET /api/v1/history
func (h *SubmissionHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}

	submissions, err := h.orchestrator.History(limit)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}
	if submissions == nil {
		submissions = []*domain.Submission{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(submissions),
		"submissions": submissions,
	})
}

// Attempts handles GET /api/v1/history/:id/attempts
func (h *SubmissionHandler) Attempts(c *gin.Context) {
	attempts, err := h.orchestrator.Attempts(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to list attempts", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attempts"})
		return
	}
	if attempts == nil {
		attempts = []*domain.DeliveryAttempt{}
	}
	c.JSON(http.StatusOK, attempts)
}

// Stats handles GET /api/v1/history/stats
func (h *SubmissionHandler) Stats(c *gin.Context) {
	stats, err := h.orchestrator.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Platforms handles GET /api/v1/platforms
func (h *SubmissionHandler) Platforms(c *gin.Context) {
	platforms := h.catalog.SupportedPlatforms()
	out := make([]PlatformInfo, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, PlatformInfo{
			Platform:    p,
			DisplayName: p.DisplayName(),
			Providers:   h.catalog.Chain(p),
		})
	}
	c.JSON(http.StatusOK, out)
}

// ProviderStatus handles GET /api/v1/providers/status
func (h *SubmissionHandler) ProviderStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.ProviderStatus(c.Request.Context()))
}
