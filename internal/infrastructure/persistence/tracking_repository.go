package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// trendingScanBatchSize is the number of log rows handed to each ScanSince callback
const trendingScanBatchSize = 1000

// GormClickRepository implements tracking.ClickRepository using GORM
type GormClickRepository struct {
	db *gorm.DB
}

// NewGormClickRepository creates a new GormClickRepository
func NewGormClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// Create inserts a click record
func (r *GormClickRepository) Create(ctx context.Context, click *tracking.ClickTracking) error {
	return r.db.WithContext(ctx).Create(models.ClickTrackingModelFromDomain(click)).Error
}

// FindByTrackingID finds a click by its public tracking id
func (r *GormClickRepository) FindByTrackingID(ctx context.Context, trackingID string) (*tracking.ClickTracking, error) {
	var model models.ClickTrackingModel
	if err := r.db.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tracking.ErrClickNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ tracking.ClickRepository = (*GormClickRepository)(nil)

// GormTrendingLogRepository implements tracking.TrendingLogRepository using GORM
type GormTrendingLogRepository struct {
	db *gorm.DB
}

// NewGormTrendingLogRepository creates a new GormTrendingLogRepository
func NewGormTrendingLogRepository(db *gorm.DB) *GormTrendingLogRepository {
	return &GormTrendingLogRepository{db: db}
}

// Append inserts one engagement log entry
func (r *GormTrendingLogRepository) Append(ctx context.Context, entry *tracking.TrendingLog) error {
	return r.db.WithContext(ctx).Create(models.TrendingLogModelFromDomain(entry)).Error
}

// ScanSince streams entries created at or after since in fixed-size batches
func (r *GormTrendingLogRepository) ScanSince(ctx context.Context, since time.Time, fn func(batch []tracking.TrendingLog) error) error {
	var rows []models.TrendingLogModel
	result := r.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		FindInBatches(&rows, trendingScanBatchSize, func(tx *gorm.DB, _ int) error {
			batch := make([]tracking.TrendingLog, 0, len(rows))
			for i := range rows {
				batch = append(batch, rows[i].ToDomain())
			}
			return fn(batch)
		})
	return result.Error
}

var _ tracking.TrendingLogRepository = (*GormTrendingLogRepository)(nil)
