package ecommerce

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/config"
)

// RetryPolicy is the adapter-level retry layered over the resilient client.
// It retries rate limiting and 5xx failures with jittered exponential
// backoff; every other error is returned immediately.
type RetryPolicy struct {
	MaxAttempts int // Retries after the initial call
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	sleep  sleepFunc
	jitter func() float64
	logger *zap.Logger
}

// RetryPolicyFrom converts the adapter settings of the http_client config section
func RetryPolicyFrom(cfg *config.HTTPClientConfig, logger *zap.Logger) RetryPolicy {
	return NewRetryPolicy(cfg.AdapterMaxAttempts, cfg.AdapterBaseDelay, cfg.AdapterMaxDelay, logger)
}

// NewRetryPolicy creates a retry policy
func NewRetryPolicy(maxAttempts int, base, maxDelay time.Duration, logger *zap.Logger) RetryPolicy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if maxDelay < base {
		maxDelay = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
		sleep:       contextSleep,
		jitter:      rand.Float64,
		logger:      logger,
	}
}

// WithSleep returns a copy of the policy using fn to wait
func (p RetryPolicy) WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = fn
	return p
}

// Do runs op until it succeeds, fails with a non-retryable error, or the attempts run out
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = contextSleep
	}
	log := p.logger
	if log == nil {
		log = zap.NewNop()
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil || !integration.IsRetryable(err) || attempt >= p.MaxAttempts {
			return err
		}

		delay, ok := p.delay(attempt, integration.RetryAfterHint(err))
		if !ok {
			log.Warn("Platform asked to wait beyond the retry cap",
				zap.Duration("retry_after", integration.RetryAfterHint(err)),
				zap.Duration("max_delay", p.MaxDelay),
				zap.Error(err),
			)
			return err
		}
		log.Warn("Platform call failed, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// delay picks a wait in [d/2, d) where d is the capped exponential backoff,
// never shorter than a server-provided hint. A hint above MaxDelay cannot be
// honoured and reports false.
func (p RetryPolicy) delay(attempt int, hint time.Duration) (time.Duration, bool) {
	if hint > p.MaxDelay {
		return 0, false
	}
	d := backoffDelay(p.BaseDelay, p.MaxDelay, attempt)
	jitter := 0.5
	if p.jitter != nil {
		jitter = p.jitter()
	}
	d = d/2 + time.Duration(float64(d/2)*jitter)
	if hint > d {
		return hint, true
	}
	return d, true
}
