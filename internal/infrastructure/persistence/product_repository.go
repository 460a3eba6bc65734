package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// counterColumns whitelists the columns IncrementCounter may touch
var counterColumns = map[catalog.Counter]bool{
	catalog.CounterViews:  true,
	catalog.CounterClicks: true,
	catalog.CounterOrders: true,
}

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByExternalID finds a product by its upsert key
func (r *GormProductRepository) FindByExternalID(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*catalog.Product, error) {
	return r.first(r.db.WithContext(ctx).
		Where("merchant_id = ? AND platform = ? AND external_id = ?", merchantID, platform, externalID))
}

// FindByTitle matches the default or localized title, ignoring case.
// The oldest product wins when several share a title.
func (r *GormProductRepository) FindByTitle(ctx context.Context, merchantID uuid.UUID, title string) (*catalog.Product, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, catalog.ErrProductNotFound
	}
	return r.first(r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Where("LOWER(title) = LOWER(?) OR LOWER(title_ar) = LOWER(?)", title, title).
		Order("created_at ASC"))
}

func (r *GormProductRepository) first(query *gorm.DB) (*catalog.Product, error) {
	var model models.ProductModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SlugExists reports whether any product already uses the slug
func (r *GormProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("slug = ?", slug).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	if err := r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError("PRODUCT_CONFLICT", fmt.Sprintf("product %s or slug %s already exists", product.ExternalID, product.Slug))
		}
		return err
	}
	return nil
}

// Update writes the synced fields of an existing product.
// Counters and trending score are owned by the tracking path and left alone.
func (r *GormProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	result := r.db.WithContext(ctx).
		Model(model).
		Select(
			"title", "title_ar", "description", "price", "currency", "images", "thumbnail",
			"stock_quantity", "is_active", "in_stock", "category_id", "external_url", "updated_at",
		).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// IncrementCounter atomically bumps one denormalized counter
func (r *GormProductRepository) IncrementCounter(ctx context.Context, id uuid.UUID, counter catalog.Counter) error {
	if !counterColumns[counter] {
		return fmt.Errorf("unknown product counter %q", counter)
	}
	column := string(counter)
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// ReplaceTrendingScores zeroes every score outside the given set and writes
// the new scores, in one transaction so readers never see a partial ranking
func (r *GormProductRepository) ReplaceTrendingScores(ctx context.Context, scores map[uuid.UUID]float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reset := tx.Model(&models.ProductModel{}).Where("trending_score <> 0")
		if len(scores) > 0 {
			ids := make([]uuid.UUID, 0, len(scores))
			for id := range scores {
				ids = append(ids, id)
			}
			reset = reset.Where("id NOT IN ?", ids)
		}
		if err := reset.UpdateColumn("trending_score", 0).Error; err != nil {
			return fmt.Errorf("reset trending scores: %w", err)
		}

		for id, score := range scores {
			if err := tx.Model(&models.ProductModel{}).
				Where("id = ?", id).
				UpdateColumn("trending_score", score).Error; err != nil {
				return fmt.Errorf("write trending score for %s: %w", id, err)
			}
		}
		return nil
	})
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
