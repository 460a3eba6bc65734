// Package cache provides the shared counters used to throttle tracking
// traffic. Redis backs them in multi-instance deployments; the in-memory
// limiter serves single instances and tests.
package cache

import (
	"context"
	"time"
)

// RateLimiter is a sliding-window counter keyed by an arbitrary string
type RateLimiter interface {
	// Allow records one hit for key and reports whether it fits within
	// limit hits over the trailing window. A non-positive limit disables
	// the check.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Close() error
}
