package handler

import (
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/application"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/response"
	"github.com/gin-gonic/gin"
)

// RunHandler serves the stored run history.
type RunHandler struct {
	service *application.TrackingService
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(service *application.TrackingService) *RunHandler {
	return &RunHandler{service: service}
}

// RegisterRoutes registers run routes on the given router group.
func (h *RunHandler) RegisterRoutes(r *gin.RouterGroup) {
	runs := r.Group("/api/v1/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET("/stats", h.RunStats)
	}
}

// ListRuns handles GET /api/v1/runs.
func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.service.ListRuns(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, runs)
}

// RunStats handles GET /api/v1/runs/stats.
func (h *RunHandler) RunStats(c *gin.Context) {
	stats, err := h.service.RunStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
