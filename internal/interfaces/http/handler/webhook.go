package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	appintegration "github.com/souq/backend/internal/application/integration"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/logger"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// DefaultWebhookBodyLimit caps webhook payloads when no limit is configured
const DefaultWebhookBodyLimit int64 = 1 << 20

// WebhookIngestor processes inbound platform deliveries
type WebhookIngestor interface {
	Ingest(ctx context.Context, req appintegration.WebhookRequest) (*appintegration.WebhookResult, error)
}

// WebhookHandler receives platform webhooks
type WebhookHandler struct {
	BaseHandler
	service     WebhookIngestor
	maxBodySize int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service WebhookIngestor, maxBodySize int64) *WebhookHandler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultWebhookBodyLimit
	}
	return &WebhookHandler{service: service, maxBodySize: maxBodySize}
}

// Receive godoc
// @ID           receiveWebhook
// @Summary      Receive a platform webhook
// @Description  Verifies the signature, records the delivery once and applies it. Accepted deliveries are acknowledged with 200 even when processing fails.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        platform path string true "Platform code" Enums(salla, zid)
// @Success      200 {object} APIResponse[dto.WebhookResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /webhooks/{platform} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform, err := integration.ParsePlatformCode(c.Param("platform"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Unknown platform")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodePayloadTooLarge, "Webhook payload exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	ctx, _ := logger.WithPlatform(c.Request.Context(), logger.FromContext(c.Request.Context()), platform.String())
	result, err := h.service.Ingest(ctx, appintegration.WebhookRequest{
		Platform: platform,
		Body:     body,
		Header:   c.GetHeader,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.WebhookResponse{
		Accepted:  result.Accepted,
		Duplicate: result.Duplicate,
	})
}
