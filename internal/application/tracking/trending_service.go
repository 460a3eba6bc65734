package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/domain/tracking"
	"go.uber.org/zap"
)

// Default trending policy
const (
	DefaultTrendingWindow   = 7 * 24 * time.Hour
	DefaultTrendingHalfLife = 48 * time.Hour
)

var ErrInvalidRecompute = shared.NewDomainError("INVALID_TRENDING_CONFIG", "Trending window and weights must not be negative")

// ScoreWriter stores recomputed trending scores
type ScoreWriter interface {
	ReplaceTrendingScores(ctx context.Context, scores map[uuid.UUID]float64) error
}

// TrendingServiceConfig is the default recompute policy
type TrendingServiceConfig struct {
	Window   time.Duration
	HalfLife time.Duration
	Weights  tracking.Weights
}

// RecomputeOptions overrides the configured policy for one run. Zero values
// keep the configured policy; a negative HalfLife disables decay.
type RecomputeOptions struct {
	Window   time.Duration
	HalfLife time.Duration
	Weights  *tracking.Weights
}

// TrendingResult summarizes one recompute
type TrendingResult struct {
	ProductsScored int   `json:"products_scored"`
	DurationMs     int64 `json:"duration_ms"`
}

// TrendingService rebuilds every product's trending score from the
// engagement log
type TrendingService struct {
	logs   tracking.TrendingLogRepository
	scores ScoreWriter
	cfg    TrendingServiceConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewTrendingService creates a new TrendingService
func NewTrendingService(logs tracking.TrendingLogRepository, scores ScoreWriter, cfg TrendingServiceConfig, logger *zap.Logger) *TrendingService {
	if cfg.Window <= 0 {
		cfg.Window = DefaultTrendingWindow
	}
	if cfg.HalfLife == 0 {
		cfg.HalfLife = DefaultTrendingHalfLife
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrendingService{
		logs:   logs,
		scores: scores,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Recompute scores every product from the log entries inside the window.
// Each entry is weighted by its event type under the current policy and
// decayed by age, so the result does not depend on entry order and a rerun
// over the same log yields the same scores. Products without entries are
// reset to zero.
func (s *TrendingService) Recompute(ctx context.Context, opts RecomputeOptions) (*TrendingResult, error) {
	policy, err := s.policy(opts)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	now := s.now()
	scores := make(map[uuid.UUID]float64)
	err = s.logs.ScanSince(ctx, now.Add(-policy.Window), func(batch []tracking.TrendingLog) error {
		for _, entry := range batch {
			weight := policy.Weights.For(entry.EventType)
			if weight == 0 {
				continue
			}
			scores[entry.ProductID] += tracking.DecayedWeight(weight, now.Sub(entry.CreatedAt), policy.HalfLife)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trending log: %w", err)
	}

	if err := s.scores.ReplaceTrendingScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("failed to store trending scores: %w", err)
	}

	result := &TrendingResult{
		ProductsScored: len(scores),
		DurationMs:     time.Since(started).Milliseconds(),
	}
	s.logger.Info("Trending scores recomputed",
		zap.Int("products_scored", result.ProductsScored),
		zap.Duration("window", policy.Window),
		zap.Duration("half_life", policy.HalfLife),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

func (s *TrendingService) policy(opts RecomputeOptions) (TrendingServiceConfig, error) {
	policy := s.cfg
	if opts.Window < 0 {
		return policy, ErrInvalidRecompute
	}
	if opts.Window > 0 {
		policy.Window = opts.Window
	}
	if opts.HalfLife != 0 {
		policy.HalfLife = opts.HalfLife
	}
	if opts.Weights != nil {
		w := *opts.Weights
		if w.View < 0 || w.Save < 0 || w.Click < 0 || w.Order < 0 {
			return policy, ErrInvalidRecompute
		}
		policy.Weights = w
	}
	return policy, nil
}
