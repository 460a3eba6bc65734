package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// maxLedgerErrorLength bounds the failure message kept on a ledger row
const maxLedgerErrorLength = 2000

// GormWebhookEventRepository implements integration.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Insert records a delivery. The unique index on (platform, store_id,
// idempotency_key) makes the insert itself the duplicate check.
func (r *GormWebhookEventRepository) Insert(ctx context.Context, event *integration.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(models.WebhookEventModelFromDomain(event)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return integration.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

// MarkProcessed moves a ledger row to processed
func (r *GormWebhookEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.setStatus(ctx, id, map[string]any{
		"status":        integration.WebhookStatusProcessed,
		"processed_at":  now,
		"error_message": "",
	})
}

// MarkFailed moves a ledger row to failed and keeps the handler error
func (r *GormWebhookEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	if len(message) > maxLedgerErrorLength {
		message = message[:maxLedgerErrorLength]
	}
	now := time.Now().UTC()
	return r.setStatus(ctx, id, map[string]any{
		"status":        integration.WebhookStatusFailed,
		"processed_at":  now,
		"error_message": message,
	})
}

func (r *GormWebhookEventRepository) setStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByKey finds the ledger row for a delivery
func (r *GormWebhookEventRepository) FindByKey(ctx context.Context, platform integration.PlatformCode, storeID, key string) (*integration.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND store_id = ? AND idempotency_key = ?", platform, storeID, key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ integration.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
