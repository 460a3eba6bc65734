package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMerchantRepository implements merchant.Repository using GORM
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewGormMerchantRepository creates a new GormMerchantRepository
func NewGormMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// lockTime normalizes a lock timestamp to the precision Postgres stores,
// so the value written by AcquireSyncLock compares equal in RestoreSyncLock.
func lockTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FindByID finds a merchant with its platform connections
func (r *GormMerchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	var model models.MerchantModel
	if err := r.db.WithContext(ctx).
		Preload("Connections").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, merchant.ErrMerchantNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStore resolves the merchant owning a platform store
func (r *GormMerchantRepository) FindByStore(ctx context.Context, platform integration.PlatformCode, storeID string) (*merchant.Merchant, error) {
	var conn models.PlatformConnectionModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND store_id = ?", platform, storeID).
		First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, merchant.ErrMerchantNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, conn.MerchantID)
}

// ListAutoSyncIDs returns the ids of merchants with auto sync enabled, oldest sync first
func (r *GormMerchantRepository) ListAutoSyncIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.MerchantModel{}).
		Where("auto_sync_enabled = ?", true).
		Order("last_sync_at ASC NULLS FIRST").
		Pluck("id", &ids).Error
	return ids, err
}

// Create persists a merchant together with its connections
func (r *GormMerchantRepository) Create(ctx context.Context, m *merchant.Merchant) error {
	model := models.MerchantModelFromDomain(m)
	now := time.Now().UTC()
	for i := range model.Connections {
		model.Connections[i].ID = uuid.New()
		model.Connections[i].CreatedAt = now
		model.Connections[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// AcquireSyncLock takes the per-merchant sync lock with a single conditional update
func (r *GormMerchantRepository) AcquireSyncLock(ctx context.Context, id uuid.UUID, now time.Time, cooldown time.Duration) (bool, error) {
	lockedAt := lockTime(now)
	result := r.db.WithContext(ctx).
		Model(&models.MerchantModel{}).
		Where("id = ? AND (last_sync_at IS NULL OR last_sync_at <= ?)", id, lockedAt.Add(-cooldown)).
		Updates(map[string]any{
			"last_sync_at": lockedAt,
			"updated_at":   lockedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RestoreSyncLock puts back the previous last_sync_at unless another run has
// already replaced the value this run wrote
func (r *GormMerchantRepository) RestoreSyncLock(ctx context.Context, id uuid.UUID, previous *time.Time, lockedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.MerchantModel{}).
		Where("id = ? AND last_sync_at = ?", id, lockTime(lockedAt)).
		Update("last_sync_at", previous).Error
}

// UpdateTokens stores a rotated token set and lifts any credential quarantine
func (r *GormMerchantRepository) UpdateTokens(ctx context.Context, id uuid.UUID, platform integration.PlatformCode, tokens integration.TokenSet) error {
	updates := map[string]any{
		"access_token":           tokens.AccessToken,
		"credentials_invalid_at": nil,
		"updated_at":             time.Now().UTC(),
	}
	// Some platforms omit the refresh token when it is not rotated
	if tokens.RefreshToken != "" {
		updates["refresh_token"] = tokens.RefreshToken
	}
	if !tokens.ExpiresAt.IsZero() {
		updates["token_expires_at"] = tokens.ExpiresAt.UTC()
	}
	return r.updateConnection(ctx, id, platform, updates)
}

// MarkCredentialsInvalid quarantines the connection until new tokens are stored
func (r *GormMerchantRepository) MarkCredentialsInvalid(ctx context.Context, id uuid.UUID, platform integration.PlatformCode, at time.Time) error {
	return r.updateConnection(ctx, id, platform, map[string]any{
		"credentials_invalid_at": at.UTC(),
		"updated_at":             time.Now().UTC(),
	})
}

func (r *GormMerchantRepository) updateConnection(ctx context.Context, id uuid.UUID, platform integration.PlatformCode, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.PlatformConnectionModel{}).
		Where("merchant_id = ? AND platform = ?", id, platform).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return merchant.ErrNotConnected
	}
	return nil
}

var _ merchant.Repository = (*GormMerchantRepository)(nil)
