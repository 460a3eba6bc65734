package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apptracking "github.com/souq/backend/internal/application/tracking"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// ClickTracker records outbound clicks and engagement events
type ClickTracker interface {
	TrackClick(ctx context.Context, req apptracking.ClickRequest) (*apptracking.ClickResult, error)
	TrackEvent(ctx context.Context, req apptracking.EventRequest) bool
}

// TrackingHandler handles the public product tracking endpoints
type TrackingHandler struct {
	BaseHandler
	service ClickTracker
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(service ClickTracker) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// productID binds and parses the product_id path parameter
func (h *TrackingHandler) productID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.ProductURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Click godoc
// @ID           trackProductClick
// @Summary      Track an outbound click
// @Description  Mints a tracking id and returns the store URL carrying it. The caller redirects the shopper to tracking_url.
// @Tags         tracking
// @Produce      json
// @Param        product_id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[dto.ClickResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /products/{product_id}/click [post]
func (h *TrackingHandler) Click(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	result, err := h.service.TrackClick(c.Request.Context(), apptracking.ClickRequest{
		ProductID: productID,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ClickResponse{
		TrackingID:  result.TrackingID,
		TrackingURL: result.TrackingURL,
		ExpiresAt:   result.ExpiresAt,
	})
}

// Event godoc
// @ID           trackProductEvent
// @Summary      Track an engagement event
// @Description  Records a VIEW or SAVE signal. Every well-formed request is answered with accepted=true; filtered signals are dropped silently.
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        product_id path string true "Product ID" format(uuid)
// @Param        request body dto.TrackEventRequest true "Event"
// @Success      200 {object} APIResponse[dto.TrackEventResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /products/{product_id}/events [post]
func (h *TrackingHandler) Event(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req dto.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	h.service.TrackEvent(c.Request.Context(), apptracking.EventRequest{
		ProductID: productID,
		EventType: tracking.EventType(req.EventType),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	})

	h.Success(c, dto.TrackEventResponse{Accepted: true})
}
