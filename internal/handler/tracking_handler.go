package handler

import (
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/application"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/response"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/source"
	"github.com/gin-gonic/gin"
)

// PushSampleRequest is one position fix posted by a device.
type PushSampleRequest struct {
	Latitude  *float64   `json:"latitude" binding:"required"`
	Longitude *float64   `json:"longitude" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
}

// TrackingHandler handles HTTP requests for the tracking session lifecycle.
type TrackingHandler struct {
	service *application.TrackingService
	push    *source.PushSource
}

// NewTrackingHandler creates a new TrackingHandler. push may be nil when
// samples arrive over Kafka; the samples endpoint is then not registered.
func NewTrackingHandler(service *application.TrackingService, push *source.PushSource) *TrackingHandler {
	return &TrackingHandler{service: service, push: push}
}

// RegisterRoutes registers all tracking routes on the given router group.
func (h *TrackingHandler) RegisterRoutes(r *gin.RouterGroup) {
	tracking := r.Group("/api/v1/tracking")
	{
		tracking.POST("/start", h.Start)
		tracking.POST("/stop", h.Stop)
		tracking.POST("/finalize", h.RetryFinalize)
		tracking.GET("/live", h.Live)
		if h.push != nil {
			tracking.POST("/samples", h.PushSample)
		}
	}
}

// Start handles POST /api/v1/tracking/start. It blocks until the first fix.
func (h *TrackingHandler) Start(c *gin.Context) {
	state, err := h.service.Start(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// Stop handles POST /api/v1/tracking/stop.
func (h *TrackingHandler) Stop(c *gin.Context) {
	result, err := h.service.Stop(c.Request.Context())
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RetryFinalize handles POST /api/v1/tracking/finalize.
func (h *TrackingHandler) RetryFinalize(c *gin.Context) {
	result, err := h.service.RetryFinalize(c.Request.Context())
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Live handles GET /api/v1/tracking/live.
func (h *TrackingHandler) Live(c *gin.Context) {
	response.Success(c, h.service.LiveState())
}

// PushSample handles POST /api/v1/tracking/samples.
func (h *TrackingHandler) PushSample(c *gin.Context) {
	var req PushSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	coord := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}

	delivered, err := h.push.Push(c.Request.Context(), coord, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"delivered": delivered})
}
