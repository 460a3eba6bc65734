package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/telemetry"
)

// Profiling label keys attached to request goroutines
const (
	ProfilingLabelMethod   = "method"
	ProfilingLabelRoute    = "route"
	ProfilingLabelResource = "resource"
	ProfilingLabelPlatform = "platform"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths are paths that don't need profiling labels.
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health"},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig runs the rest of the chain under Pyroscope labels:
// method, route pattern, resource (e.g. "merchants", "webhooks") and the
// platform path parameter when the route has one.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), extractProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func extractProfilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)
	if method := c.Request.Method; method != "" {
		labels[ProfilingLabelMethod] = method
	}
	route := c.FullPath()
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if resource := resourceFromRoute(route); resource != "" {
		labels[ProfilingLabelResource] = resource
	}
	if platform, err := integration.ParsePlatformCode(c.Param(platformParam)); err == nil {
		labels[ProfilingLabelPlatform] = string(platform)
	}
	return labels
}

// resourceFromRoute returns the first static segment after the API version:
// "/api/v1/merchants/:merchant_id/sync" -> "merchants".
func resourceFromRoute(route string) string {
	for part := range strings.SplitSeq(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
