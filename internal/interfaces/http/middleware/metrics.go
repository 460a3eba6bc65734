package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTP metric attribute keys
var (
	attrHTTPMethod     = attribute.Key("http.method")
	attrHTTPRoute      = attribute.Key("http.route")
	attrHTTPStatusCode = attribute.Key("http.status_code")
)

// httpDurationBuckets cover fast tracking redirects through slow manual syncs (seconds).
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider is the OpenTelemetry meter provider.
	MeterProvider *telemetry.MeterProvider
	// Enabled controls whether metrics collection is active.
	Enabled bool
}

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  httpDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Mostly webhook payloads; the body limit caps them at 1 MiB by default
	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1048576},
	})
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestSize:     requestSize,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics returns a Gin middleware that records:
//   - http_server_request_total by method, route, status_code and platform
//   - http_server_request_duration_seconds by method and route
//   - http_server_request_size_bytes by method and route
//   - http_server_active_requests
//
// Merchant and product ids are never used as labels.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter returns HTTP metrics middleware using an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passthrough
	}
	return httpMetricsMiddleware(metrics)
}

func passthrough(c *gin.Context) {
	c.Next()
}

func httpMetricsMiddleware(metrics *httpMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		platform := ""
		if code, err := integration.ParsePlatformCode(c.Param(platformParam)); err == nil {
			platform = string(code)
		}
		recordHTTPMetrics(ctx, metrics, c.Request.Method, getRoutePattern(c), c.Writer.Status(), platform, time.Since(start), requestSize)
	}
}

func recordHTTPMetrics(
	ctx context.Context,
	metrics *httpMetrics,
	method, route string,
	statusCode int,
	platform string,
	duration time.Duration,
	requestSize int64,
) {
	requestAttrs := []attribute.KeyValue{
		attrHTTPMethod.String(method),
		attrHTTPRoute.String(route),
		attrHTTPStatusCode.Int(statusCode),
	}
	if platform != "" {
		requestAttrs = append(requestAttrs, telemetry.AttrPlatform.String(platform))
	}
	metrics.requestTotal.Inc(ctx, requestAttrs...)

	baseAttrs := []attribute.KeyValue{
		attrHTTPMethod.String(method),
		attrHTTPRoute.String(route),
	}
	metrics.requestDuration.RecordDuration(ctx, duration, baseAttrs...)
	if requestSize > 0 {
		metrics.requestSize.Record(ctx, float64(requestSize), baseAttrs...)
	}
}

// getRoutePattern returns the matched route, e.g. "/api/v1/products/:product_id/click",
// so raw ids never become label values.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
