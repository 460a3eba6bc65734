package ecommerce

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// flakyServer answers status for the first failures requests, then 200
func flakyServer(t *testing.T, failures int, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"try later"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func get(t *testing.T, c *ResilientClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestResilientClient_RetryBounds(t *testing.T) {
	const maxAttempts = 3

	tests := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int32
	}{
		{"no failures", 0, false, 1},
		{"fewer failures than retries", 2, false, 3},
		{"failures equal to retries", maxAttempts, false, maxAttempts + 1},
		{"failures exceed retries", maxAttempts + 1, true, maxAttempts + 1},
		{"persistent failure", 10, true, maxAttempts + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := flakyServer(t, tt.failures, http.StatusServiceUnavailable)
			rec := &sleepRecorder{}
			client := newTestClient(maxAttempts, rec)

			resp, err := get(t, client, server.URL)
			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.LessOrEqual(t, rec.total(), time.Second)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, integration.ErrUpstreamServer)
				var upErr *integration.UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
				return
			}
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestResilientClient_RetryableStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		server, calls := flakyServer(t, 1, status)
		resp, err := get(t, newTestClient(2, nil), server.URL)
		require.NoError(t, err, "status %d", status)
		resp.Body.Close()
		assert.Equal(t, int32(2), calls.Load(), "status %d", status)
	}
}

func TestResilientClient_ClientErrorsReturnedAsIs(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422, 501} {
		server, calls := flakyServer(t, 5, status)
		resp, err := get(t, newTestClient(3, nil), server.URL)
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, status, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Contains(t, string(body), "try later")
		assert.Equal(t, int32(1), calls.Load(), "status %d must not be retried", status)
	}
}

func TestResilientClient_ExponentialBackoff(t *testing.T) {
	server, _ := flakyServer(t, 10, http.StatusBadGateway)
	rec := &sleepRecorder{}
	client := newTestClient(5, rec)

	_, err := get(t, client, server.URL)
	require.Error(t, err)
	// 10, 20, 40, 80 (cap), 80 (cap) milliseconds
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond,
	}, rec.delays)
}

func TestResilientClient_ElapsedCap(t *testing.T) {
	server, calls := flakyServer(t, 100, http.StatusServiceUnavailable)
	rec := &sleepRecorder{}
	client := NewResilientClient(ClientConfig{
		Timeout:     time.Second,
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		MaxElapsed:  250 * time.Millisecond,
	}, zap.NewNop(), WithSleep(rec.sleep))

	_, err := get(t, client, server.URL)
	assert.ErrorIs(t, err, integration.ErrUpstreamServer)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, int32(3), calls.Load())
	assert.LessOrEqual(t, rec.total(), 250*time.Millisecond)
}

func TestResilientClient_RetryAfter(t *testing.T) {
	t.Run("seconds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		rec := &sleepRecorder{}
		resp, err := get(t, newTestClient(2, rec), server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		// A zero hint falls back to the computed backoff
		assert.Equal(t, []time.Duration{10 * time.Millisecond}, rec.delays)
	})

	t.Run("hint exceeding elapsed cap stops retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		rec := &sleepRecorder{}
		_, err := get(t, newTestClient(3, rec), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, integration.ErrRateLimited)
		assert.Equal(t, 120*time.Second, integration.RetryAfterHint(err))
		assert.Zero(t, rec.count())
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"negative seconds", "-3", 0},
		{"http date", now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{"past http date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value, now))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base, maxDelay := 100*time.Millisecond, time.Second
	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, maxDelay, 0))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, maxDelay, 2))
	assert.Equal(t, time.Second, backoffDelay(base, maxDelay, 4))
	assert.Equal(t, time.Second, backoffDelay(base, maxDelay, 200))
}

func TestResilientClient_NetworkFailure(t *testing.T) {
	// Grab a free port and close it so connections are refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	rec := &sleepRecorder{}
	_, err = get(t, newTestClient(2, rec), "http://"+addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrTransientNetwork)
	assert.True(t, integration.IsRetryable(err))
	assert.Equal(t, 2, rec.count())
}

func TestResilientClient_PerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer server.Close()

	client := NewResilientClient(ClientConfig{
		Timeout:     50 * time.Millisecond,
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		MaxElapsed:  time.Second,
	}, zap.NewNop(), WithSleep(noSleep))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "late but fine", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestResilientClient_ReplaysBody(t *testing.T) {
	var bodies []string
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("grant_type=refresh_token"))
	require.NoError(t, err)
	resp, err := newTestClient(2, nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"grant_type=refresh_token", "grant_type=refresh_token"}, bodies)
}

func TestResilientClient_CallerCancellation(t *testing.T) {
	server, calls := flakyServer(t, 100, http.StatusServiceUnavailable)
	ctx, cancel := context.WithCancel(context.Background())

	client := newTestClient(5, nil)
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
}
