package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindByExternalID finds a merchant's category by its platform id
func (r *GormCategoryRepository) FindByExternalID(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND platform = ? AND external_id = ?", merchantID, platform, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new category
func (r *GormCategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	return r.db.WithContext(ctx).Create(models.CategoryModelFromDomain(category)).Error
}

// Update writes the names of an existing category. The slug is fixed at creation.
func (r *GormCategoryRepository) Update(ctx context.Context, category *catalog.Category) error {
	model := models.CategoryModelFromDomain(category)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("name", "name_ar", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
