package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimiter implements RateLimiter with per-key hit timestamps.
// State is local to the process.
type InMemoryRateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	maxWindow time.Duration
}

// NewInMemoryRateLimiter creates a limiter and starts its cleanup goroutine
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	l := &InMemoryRateLimiter{
		hits:     make(map[string][]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanupLoop()
	return l
}

// Allow records a hit and reports whether the key is within its limit
func (l *InMemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if window > l.maxWindow {
		l.maxWindow = window
	}
	kept := prune(l.hits[key], now.Add(-window))
	if len(kept) >= limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the first kept index bounds the slice.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

func (l *InMemoryRateLimiter) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopChan:
			return
		}
	}
}

func (l *InMemoryRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxWindow)
	for key, hits := range l.hits {
		if kept := prune(hits, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

// Size returns the number of tracked keys
func (l *InMemoryRateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// Close stops the cleanup goroutine
func (l *InMemoryRateLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

var _ RateLimiter = (*InMemoryRateLimiter)(nil)
