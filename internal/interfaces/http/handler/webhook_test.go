package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	appintegration "github.com/souq/backend/internal/application/integration"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupWebhookRouter(service WebhookIngestor, maxBody int64) *gin.Engine {
	h := NewWebhookHandler(service, maxBody)
	r := gin.New()
	r.POST("/webhooks/:platform", h.Receive)
	return r
}

func TestWebhookHandler_Receive(t *testing.T) {
	payload := `{"event":"order.created","merchant":42}`

	t.Run("passes body and headers through", func(t *testing.T) {
		service := new(MockWebhookIngestor)
		service.On("Ingest", mock.Anything, mock.MatchedBy(func(r appintegration.WebhookRequest) bool {
			return r.Platform == integration.PlatformSalla &&
				string(r.Body) == payload &&
				r.Header("X-Salla-Signature") == "abc123"
		})).Return(&appintegration.WebhookResult{Accepted: true}, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/salla", bytes.NewBufferString(payload))
		req.Header.Set("X-Salla-Signature", "abc123")
		setupWebhookRouter(service, 0).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, true, data["accepted"])
		assert.NotContains(t, data, "duplicate")
		service.AssertExpectations(t)
	})

	t.Run("duplicate is acknowledged", func(t *testing.T) {
		service := new(MockWebhookIngestor)
		service.On("Ingest", mock.Anything, mock.Anything).
			Return(&appintegration.WebhookResult{Accepted: true, Duplicate: true}, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/zid", bytes.NewBufferString(payload))
		setupWebhookRouter(service, 0).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, true, data["duplicate"])
	})

	t.Run("unknown platform", func(t *testing.T) {
		service := new(MockWebhookIngestor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", bytes.NewBufferString(payload))
		setupWebhookRouter(service, 0).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		service.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})

	t.Run("oversized body", func(t *testing.T) {
		service := new(MockWebhookIngestor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/salla", strings.NewReader(strings.Repeat("x", 64)))
		setupWebhookRouter(service, 32).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, dto.ErrCodePayloadTooLarge, decodeResponse(t, w).Error.Code)
		service.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})
}

func TestWebhookHandler_ReceiveErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
	}{
		{"bad signature", integration.ErrSignatureInvalid, http.StatusUnauthorized, dto.ErrCodeSignatureInvalid},
		{"missing signature", integration.ErrSignatureMissing, http.StatusUnauthorized, dto.ErrCodeSignatureInvalid},
		{"secret not configured", integration.ErrWebhookNotEnabled, http.StatusInternalServerError, dto.ErrCodeWebhookNotConfigured},
		{"platform not configured", integration.ErrPlatformNotConfigured, http.StatusInternalServerError, dto.ErrCodeWebhookNotConfigured},
		{"ledger failure", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockWebhookIngestor)
			service.On("Ingest", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/salla", bytes.NewBufferString(`{}`))
			setupWebhookRouter(service, 0).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.expectedErr, decodeResponse(t, w).Error.Code)
		})
	}
}
