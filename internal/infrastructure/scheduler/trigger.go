package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apptracking "github.com/souq/backend/internal/application/tracking"
	"go.uber.org/zap"
)

// IntervalTrigger runs a task every interval until stopped. Ticks that fire
// while the previous run is still going are dropped.
type IntervalTrigger struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger. The task is not run at start; the first
// run happens one interval later.
func NewIntervalTrigger(name string, interval time.Duration, task func(ctx context.Context), logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("trigger", name)),
	}
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return ErrInvalidConfig
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Trigger started", zap.Duration("interval", t.interval))
	return nil
}

// Stop stops the trigger and waits for an in-flight run
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.task(ctx)
		}
	}
}

// MerchantLister lists merchants that opted into scheduled syncs
type MerchantLister interface {
	ListAutoSyncIDs(ctx context.Context) ([]uuid.UUID, error)
}

// AutoSyncTask queues a sync for every merchant with auto sync enabled
func AutoSyncTask(merchants MerchantLister, s *Scheduler, logger *zap.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		ids, err := merchants.ListAutoSyncIDs(ctx)
		if err != nil {
			logger.Error("Failed to list auto sync merchants", zap.Error(err))
			return
		}

		queued := 0
		for _, id := range ids {
			if err := s.Submit(id); err != nil {
				logger.Warn("Failed to queue scheduled sync",
					zap.String("merchant_id", id.String()),
					zap.Error(err),
				)
				continue
			}
			queued++
		}
		logger.Info("Scheduled syncs queued", zap.Int("merchants", len(ids)), zap.Int("queued", queued))
	}
}

// TrendingRecomputer recomputes trending scores
type TrendingRecomputer interface {
	Recompute(ctx context.Context, opts apptracking.RecomputeOptions) (*apptracking.TrendingResult, error)
}

// TrendingTask recomputes trending scores with the configured policy
func TrendingTask(recomputer TrendingRecomputer, logger *zap.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		result, err := recomputer.Recompute(ctx, apptracking.RecomputeOptions{})
		if err != nil {
			logger.Error("Scheduled trending recompute failed", zap.Error(err))
			return
		}
		logger.Info("Scheduled trending recompute completed", zap.Int("products_scored", result.ProductsScored))
	}
}
