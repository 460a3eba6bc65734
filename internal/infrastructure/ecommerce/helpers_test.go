package ecommerce

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// sleepRecorder replaces real waits and records each requested delay
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestClient(maxAttempts int, rec *sleepRecorder) *ResilientClient {
	sleep := noSleep
	if rec != nil {
		sleep = rec.sleep
	}
	return NewResilientClient(ClientConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: maxAttempts,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    80 * time.Millisecond,
		MaxElapsed:  time.Second,
	}, zap.NewNop(), WithSleep(sleep))
}

// noRetry disables the adapter-level retry so tests see single round trips
func noRetry() RetryPolicy {
	return NewRetryPolicy(0, time.Millisecond, time.Millisecond, nil).WithSleep(noSleep)
}

// testCredentials is a CredentialSource whose refresh hands out next
type testCredentials struct {
	token     string
	next      *testCredentials
	err       error
	refreshes *atomic.Int32
}

func newTestCredentials(token string) *testCredentials {
	return &testCredentials{token: token, refreshes: &atomic.Int32{}}
}

// rotatesTo makes Refreshed return a source holding token
func (c *testCredentials) rotatesTo(token string) *testCredentials {
	c.next = &testCredentials{token: token, refreshes: c.refreshes}
	return c
}

// failsRefresh makes Refreshed return err
func (c *testCredentials) failsRefresh(err error) *testCredentials {
	c.err = err
	return c
}

func (c *testCredentials) CurrentToken() string {
	return c.token
}

func (c *testCredentials) Refreshed(context.Context) (integration.CredentialSource, error) {
	c.refreshes.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if c.next == nil {
		return nil, integration.ErrCredentialsInvalid
	}
	return c.next, nil
}
