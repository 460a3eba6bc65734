package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
)

// ProductRepository persists products
type ProductRepository interface {
	SlugChecker

	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// FindByExternalID returns ErrProductNotFound when no product exists for the key.
	FindByExternalID(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*Product, error)
	// FindByTitle matches the default or localized title case-insensitively and exactly.
	FindByTitle(ctx context.Context, merchantID uuid.UUID, title string) (*Product, error)
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	IncrementCounter(ctx context.Context, id uuid.UUID, counter Counter) error
	// ReplaceTrendingScores writes the given scores and zeroes every other product.
	ReplaceTrendingScores(ctx context.Context, scores map[uuid.UUID]float64) error
}

// CategoryRepository persists categories
type CategoryRepository interface {
	FindByExternalID(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, externalID string) (*Category, error)
	Create(ctx context.Context, category *Category) error
	Update(ctx context.Context, category *Category) error
}
