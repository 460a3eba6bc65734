package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/souq/backend/internal/infrastructure/auth"
	"github.com/souq/backend/internal/infrastructure/config"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key-at-least-32-chars",
		Issuer:          "souq-test",
		TokenExpiration: expiration,
	})
}

func issue(t *testing.T, svc *auth.JWTService, scope string, merchantID uuid.UUID) string {
	t.Helper()
	token, err := svc.GenerateToken(auth.GenerateTokenInput{Subject: "sync-worker", MerchantID: merchantID, Scope: scope})
	require.NoError(t, err)
	return token.Token
}

func authedRequest(router *gin.Engine, method, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	merchantID := uuid.New()

	var seen *auth.Claims
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc, nil))
	router.GET("/test", func(c *gin.Context) {
		seen = GetJWTClaims(c)
		assert.Equal(t, merchantID.String(), GetJWTMerchantID(c))
		c.Status(http.StatusOK)
	})

	w := authedRequest(router, http.MethodGet, "/test", BearerPrefix+issue(t, svc, auth.ScopeMerchant, merchantID))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, auth.ScopeMerchant, seen.Scope)
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	expired := issue(t, newTestJWTService(-time.Minute), auth.ScopeAdmin, uuid.Nil)
	foreign := issue(t, auth.NewJWTService(config.JWTConfig{
		Secret:          "another-secret-key-of-32-chars!!",
		Issuer:          "souq-test",
		TokenExpiration: time.Minute,
	}), auth.ScopeAdmin, uuid.Nil)

	tests := []struct {
		name         string
		header       string
		expectedCode string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", dto.ErrCodeUnauthorized},
		{"empty bearer", BearerPrefix, dto.ErrCodeUnauthorized},
		{"garbage token", BearerPrefix + "not.a.jwt", dto.ErrCodeTokenInvalid},
		{"expired token", BearerPrefix + expired, dto.ErrCodeTokenExpired},
		{"wrong signing key", BearerPrefix + foreign, dto.ErrCodeTokenInvalid},
	}

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc, nil))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := authedRequest(router, http.MethodGet, "/test", tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.expectedCode, errorCode(t, w))
		})
	}
}

func TestJWTAuthMiddleware_CustomOnError(t *testing.T) {
	called := false
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		Validator: newTestJWTService(time.Minute),
		OnError: func(c *gin.Context, err error) {
			called = true
			c.JSON(http.StatusTeapot, gin.H{"error": err.Error()})
		},
	}))
	router.GET("/test", func(c *gin.Context) {
		t.Error("handler must not run")
	})

	w := authedRequest(router, http.MethodGet, "/test", "")
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRequireMerchantAccess(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	own := uuid.New()
	other := uuid.New()

	router := gin.New()
	merchants := router.Group("/merchants/:merchant_id", JWTAuthMiddleware(svc, nil), RequireMerchantAccess("merchant_id"))
	merchants.POST("/sync", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	merchantToken := BearerPrefix + issue(t, svc, auth.ScopeMerchant, own)
	adminToken := BearerPrefix + issue(t, svc, auth.ScopeAdmin, uuid.Nil)

	tests := []struct {
		name         string
		path         string
		header       string
		expectedCode int
	}{
		{"own merchant", "/merchants/" + own.String() + "/sync", merchantToken, http.StatusOK},
		{"other merchant", "/merchants/" + other.String() + "/sync", merchantToken, http.StatusForbidden},
		{"admin on any merchant", "/merchants/" + other.String() + "/sync", adminToken, http.StatusOK},
		{"malformed merchant id", "/merchants/abc/sync", adminToken, http.StatusBadRequest},
		{"no token", "/merchants/" + own.String() + "/sync", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := authedRequest(router, http.MethodPost, tt.path, tt.header)
			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	router := gin.New()
	router.GET("/admin", JWTAuthMiddleware(svc, nil), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/unauthenticated", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := authedRequest(router, http.MethodGet, "/admin", BearerPrefix+issue(t, svc, auth.ScopeAdmin, uuid.Nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(router, http.MethodGet, "/admin", BearerPrefix+issue(t, svc, auth.ScopeMerchant, uuid.New()))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, errorCode(t, w))

	w = authedRequest(router, http.MethodGet, "/unauthenticated", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
