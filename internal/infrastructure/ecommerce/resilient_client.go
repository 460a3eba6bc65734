package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/config"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxDrainSize bounds how much of a discarded response body is read before closing
const maxDrainSize = 64 * 1024

// ClientConfig tunes the resilient client
type ClientConfig struct {
	Timeout     time.Duration // Per attempt
	MaxAttempts int           // Retries after the initial attempt
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration // Cap for the sum of all waits
}

// ClientConfigFrom converts the http_client config section
func ClientConfigFrom(cfg *config.HTTPClientConfig) ClientConfig {
	return ClientConfig{
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxElapsed:  cfg.MaxElapsed,
	}
}

// sleepFunc waits for d or until ctx is done
type sleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ResilientClient wraps an http.Client with a per-attempt timeout and
// bounded exponential backoff. Retries happen on network failures and on
// 429, 500, 502, 503 and 504. Other responses, including every other 4xx,
// are handed back to the caller untouched.
type ResilientClient struct {
	httpClient *http.Client
	cfg        ClientConfig
	sleep      sleepFunc
	now        func() time.Time
	logger     *zap.Logger
}

// ClientOption customizes a ResilientClient
type ClientOption func(*ResilientClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(rc *ResilientClient) {
		rc.httpClient = c
	}
}

// WithSleep replaces the wait function, mostly for tests
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(rc *ResilientClient) {
		rc.sleep = fn
	}
}

// NewResilientClient creates a resilient client
func NewResilientClient(cfg ClientConfig, logger *zap.Logger, opts ...ClientOption) *ResilientClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := &ResilientClient{
		httpClient: &http.Client{},
		cfg:        cfg,
		sleep:      contextSleep,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Do sends req, retrying transient failures. A returned response is owned by
// the caller. When retries are exhausted the error is an *integration.UpstreamError.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		waited  time.Duration
		lastErr error
	)

	for attempt := 0; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return nil, lastErr
			}
		}

		resp, err := c.attempt(ctx, req)
		if err == nil && !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		var delay time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ecommerce: request cancelled: %w", ctx.Err())
			}
			lastErr = &integration.UpstreamError{
				Err:     integration.ErrTransientNetwork,
				Message: err.Error(),
			}
			delay = backoffDelay(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
		} else {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
			lastErr = &integration.UpstreamError{
				Err:        integration.ClassifyStatus(resp.StatusCode),
				StatusCode: resp.StatusCode,
				RetryAfter: retryAfter,
				Message:    http.StatusText(resp.StatusCode),
			}
			delay = retryAfter
			if delay <= 0 {
				delay = backoffDelay(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
			}
			drainAndClose(resp.Body)
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}
		if c.cfg.MaxElapsed > 0 && waited+delay > c.cfg.MaxElapsed {
			c.logger.Warn("Retry elapsed cap reached",
				zap.String("host", req.URL.Host),
				zap.Int("attempt", attempt+1),
				zap.Duration("waited", waited),
				zap.Duration("next_delay", delay),
			)
			break
		}

		c.logger.Debug("Retrying platform request",
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("ecommerce: request cancelled: %w", err)
		}
		waited += delay
	}

	return nil, lastErr
}

// attempt performs one round trip under the per-attempt timeout. The timeout
// context stays alive until the caller closes the response body.
func (c *ResilientClient) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	resp, err := c.httpClient.Do(req.WithContext(attemptCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("ecommerce: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffDelay returns base * 2^attempt, capped at maxDelay
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		if delay >= maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// parseRetryAfter reads a Retry-After header given either as seconds or as an HTTP-date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainSize))
	_ = body.Close()
}
