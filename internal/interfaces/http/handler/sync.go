package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/souq/backend/internal/application/integration"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// MerchantSyncer runs and reports merchant syncs
type MerchantSyncer interface {
	Sync(ctx context.Context, req appintegration.SyncRequest) (*appintegration.SyncResult, error)
	Status(ctx context.Context, merchantID uuid.UUID) (*appintegration.SyncStatus, error)
}

// SyncHandler handles merchant sync endpoints
type SyncHandler struct {
	BaseHandler
	service MerchantSyncer
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service MerchantSyncer) *SyncHandler {
	return &SyncHandler{service: service}
}

// Sync godoc
// @ID           syncMerchant
// @Summary      Sync a merchant's store
// @Description  Imports the catalog and orders of the merchant's connected platform. At most one sync runs per cooldown window.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        merchant_id path string true "Merchant ID" format(uuid)
// @Param        request body dto.SyncRequest false "Sync options"
// @Success      200 {object} APIResponse[dto.SyncResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      424 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /merchants/{merchant_id}/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("merchant_id"))
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID format")
		return
	}

	// The body is optional
	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return
	}

	result, err := h.service.Sync(c.Request.Context(), appintegration.SyncRequest{
		MerchantID: merchantID,
		Platform:   integration.PlatformCode(req.Platform),
		SyncOrders: req.SyncOrders,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.SyncResponse{
		Platform: result.Platform.String(),
		Summary: dto.SyncSummaryResponse{
			ProductsCreated:        result.Summary.ProductsCreated,
			ProductsUpdated:        result.Summary.ProductsUpdated,
			CategoriesCreated:      result.Summary.CategoriesCreated,
			CategoriesUpdated:      result.Summary.CategoriesUpdated,
			OrdersSeen:             result.Summary.OrdersSeen,
			OrdersUpserted:         result.Summary.OrdersUpserted,
			OrdersWithProductMatch: result.Summary.OrdersWithProductMatch,
		},
		DurationMs: result.Duration.Milliseconds(),
	})
}

// Status godoc
// @ID           getMerchantSyncStatus
// @Summary      Get sync status
// @Description  Reports the last sync time and whether a new sync may start now
// @Tags         sync
// @Produce      json
// @Param        merchant_id path string true "Merchant ID" format(uuid)
// @Success      200 {object} APIResponse[dto.SyncStatusResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /merchants/{merchant_id}/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("merchant_id"))
	if err != nil {
		h.BadRequest(c, "Invalid merchant ID format")
		return
	}

	status, err := h.service.Status(c.Request.Context(), merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SyncStatusResponse{
		LastSyncAt:      status.LastSyncAt,
		CanSyncNow:      status.CanSyncNow,
		AutoSyncEnabled: status.AutoSyncEnabled,
	}))
}
