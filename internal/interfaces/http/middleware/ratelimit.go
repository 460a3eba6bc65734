package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Limiter is the sliding-window store behind RateLimit. The cache package
// provides Redis and in-memory implementations.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitConfig configures the request rate limit middleware
type RateLimitConfig struct {
	Limiter Limiter
	Limit   int
	Window  time.Duration
	// Scope namespaces the keys so several limits can share one store
	Scope string
	// KeyFunc identifies the caller; the client IP when nil
	KeyFunc func(c *gin.Context) string
	Logger  *zap.Logger
}

// RateLimit rejects callers that exceed Limit requests per Window with a 429.
// Store failures let the request through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if cfg.Scope == "" {
		cfg.Scope = "api"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	limitHeader := strconv.Itoa(cfg.Limit)

	return func(c *gin.Context) {
		if cfg.Limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := "http:" + cfg.Scope + ":" + cfg.KeyFunc(c)
		allowed, err := cfg.Limiter.Allow(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			cfg.Logger.Warn("Rate limiter unavailable, allowing request",
				zap.String("scope", cfg.Scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limitHeader)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				c.GetString(RequestIDKey),
			))
			return
		}

		c.Next()
	}
}
