package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/tracking"
)

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{hits: make(map[string]int)}
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

type memProducts struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*catalog.Product
	counters map[uuid.UUID]map[catalog.Counter]int
	scores   map[uuid.UUID]float64
	err      error
}

func newMemProducts(ps ...*catalog.Product) *memProducts {
	r := &memProducts{
		byID:     make(map[uuid.UUID]*catalog.Product),
		counters: make(map[uuid.UUID]map[catalog.Counter]int),
	}
	for _, p := range ps {
		r.byID[p.ID] = p
	}
	return r
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if p, ok := r.byID[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (r *memProducts) IncrementCounter(_ context.Context, id uuid.UUID, counter catalog.Counter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters[id] == nil {
		r.counters[id] = make(map[catalog.Counter]int)
	}
	r.counters[id][counter]++
	return nil
}

func (r *memProducts) ReplaceTrendingScores(_ context.Context, scores map[uuid.UUID]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = scores
	return nil
}

func (r *memProducts) counter(id uuid.UUID, counter catalog.Counter) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[id][counter]
}

type memMerchants map[uuid.UUID]*merchant.Merchant

func (r memMerchants) FindByID(_ context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	if m, ok := r[id]; ok {
		return m, nil
	}
	return nil, merchant.ErrMerchantNotFound
}

type memClicks struct {
	mu   sync.Mutex
	rows []tracking.ClickTracking
}

func (r *memClicks) Create(_ context.Context, c *tracking.ClickTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *c)
	return nil
}

func (r *memClicks) FindByTrackingID(_ context.Context, trackingID string) (*tracking.ClickTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.TrackingID == trackingID {
			return &c, nil
		}
	}
	return nil, tracking.ErrClickNotFound
}

type memTrending struct {
	mu      sync.Mutex
	entries []tracking.TrendingLog
	err     error
}

func (r *memTrending) Append(_ context.Context, entry *tracking.TrendingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// ScanSince hands entries over in batches of two to exercise batching
func (r *memTrending) ScanSince(_ context.Context, since time.Time, fn func(batch []tracking.TrendingLog) error) error {
	r.mu.Lock()
	var matched []tracking.TrendingLog
	for _, e := range r.entries {
		if !e.CreatedAt.Before(since) {
			matched = append(matched, e)
		}
	}
	r.mu.Unlock()
	for len(matched) > 0 {
		n := min(2, len(matched))
		if err := fn(matched[:n]); err != nil {
			return err
		}
		matched = matched[n:]
	}
	return nil
}

func (r *memTrending) byType(t tracking.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.EventType == t {
			n++
		}
	}
	return n
}

type recordingMetrics struct {
	mu       sync.Mutex
	accepted map[string]int
	rejected map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{accepted: map[string]int{}, rejected: map[string]int{}}
}

func (m *recordingMetrics) RecordTrackingEvent(_ context.Context, eventType string, accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.accepted[eventType]++
		return
	}
	m.rejected[eventType]++
}
