// Package middleware provides HTTP middleware for the marketplace backend.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request IDs copied from headers into spans.
const MaxRequestIDLength = 128

// Path parameters recorded on spans when present on the matched route
const (
	merchantIDParam = "merchant_id"
	platformParam   = "platform"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "souq-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the otelgin server span middleware. The span name
// follows "METHOD route_pattern", e.g. "POST /api/v1/webhooks/:platform".
//
// otelgin ends the span before returning, so request attributes are added by
// TracingAttributeInjector and SpanErrorMarker further down the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultTracingConfig().ServiceName
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector adds request_id, merchant_id and platform to the
// current span. Place it after Tracing. Merchant claims are only visible when
// it also runs after JWT authentication; otherwise the path parameter is used.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := getRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if merchantID := getMerchantID(c); merchantID != "" {
		span.SetAttributes(attribute.String("merchant_id", merchantID))
	}
	if platform, err := integration.ParsePlatformCode(c.Param(platformParam)); err == nil {
		span.SetAttributes(attribute.String("platform", string(platform)))
	}
}

// getRequestID prefers the ID assigned by RequestID and falls back to a
// truncated header value.
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	headerID := c.GetHeader(RequestIDKey)
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getMerchantID prefers the authenticated merchant. Path values are only
// recorded when they parse as a UUID.
func getMerchantID(c *gin.Context) string {
	if id := GetJWTMerchantID(c); id != "" {
		return id
	}
	if id, err := uuid.Parse(c.Param(merchantIDParam)); err == nil {
		return id.String()
	}
	return ""
}

// SpanErrorMarker marks the span as failed for 4xx and 5xx responses. Place
// it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		description := http.StatusText(status)
		if status >= http.StatusInternalServerError {
			description = "Internal Server Error"
		}
		span.SetStatus(codes.Error, description)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			span.RecordError(errs.Last().Err)
		}
	}
}
