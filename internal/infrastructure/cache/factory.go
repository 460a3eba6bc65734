package cache

import (
	"fmt"

	"github.com/souq/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RateLimiterFactory creates rate limiters based on configuration
type RateLimiterFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RateLimiterFactoryOption is a functional option for configuring the factory
type RateLimiterFactoryOption func(*RateLimiterFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RateLimiterFactoryOption {
	return func(f *RateLimiterFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory limiter
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) RateLimiterFactoryOption {
	return func(f *RateLimiterFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRateLimiterFactory creates a new factory
func NewRateLimiterFactory(cfg config.RedisConfig, opts ...RateLimiterFactoryOption) *RateLimiterFactory {
	f := &RateLimiterFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLimiter creates a Redis-backed limiter
func (f *RateLimiterFactory) CreateRedisLimiter() (RateLimiter, error) {
	limiter, err := NewRedisRateLimiter(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis rate limiter: %w", err)
	}
	return limiter, nil
}

// CreateInMemoryLimiter creates a process-local limiter. Limits are enforced
// per instance, so N instances admit up to N times the configured rate.
func (f *RateLimiterFactory) CreateInMemoryLimiter() RateLimiter {
	return NewInMemoryRateLimiter()
}

// CreateLimiter returns the Redis limiter when Redis is enabled and reachable,
// otherwise the in-memory limiter if fallback is allowed
func (f *RateLimiterFactory) CreateLimiter() (RateLimiter, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory rate limiter")
		return f.CreateInMemoryLimiter(), nil
	}

	limiter, err := f.CreateRedisLimiter()
	if err == nil {
		f.logger.Info("using Redis rate limiter", zap.String("addr", f.redisConfig.Addr()))
		return limiter, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for rate limiting but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory rate limiter. "+
		"Limits will be enforced per instance.",
		zap.Error(err),
	)
	return f.CreateInMemoryLimiter(), nil
}
