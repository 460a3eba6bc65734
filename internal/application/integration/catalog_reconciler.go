package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CatalogSummary counts the catalog changes made by one reconcile run
type CatalogSummary struct {
	PagesFetched      int
	ProductsSeen      int
	ProductsCreated   int
	ProductsUpdated   int
	CategoriesCreated int
	CategoriesUpdated int
}

// CatalogReconciler converges a store's product listing into the catalog
type CatalogReconciler struct {
	products        catalog.ProductRepository
	categories      catalog.CategoryRepository
	publisher       shared.EventPublisher
	maxPages        int
	maxSlugAttempts int
	logger          *zap.Logger
}

// CatalogReconcilerConfig holds the paging limits of a CatalogReconciler
type CatalogReconcilerConfig struct {
	// MaxPages stops paging after this many pages. Zero means unbounded.
	MaxPages        int
	MaxSlugAttempts int
}

// NewCatalogReconciler creates a new CatalogReconciler. publisher may be nil.
func NewCatalogReconciler(
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	publisher shared.EventPublisher,
	cfg CatalogReconcilerConfig,
	logger *zap.Logger,
) *CatalogReconciler {
	if cfg.MaxSlugAttempts <= 0 {
		cfg.MaxSlugAttempts = catalog.DefaultMaxSlugAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogReconciler{
		products:        products,
		categories:      categories,
		publisher:       publisher,
		maxPages:        cfg.MaxPages,
		maxSlugAttempts: cfg.MaxSlugAttempts,
		logger:          logger,
	}
}

// catalogRun is the state of one reconcile pass. The category cache lives
// only as long as the run.
type catalogRun struct {
	merchantID uuid.UUID
	platform   integration.PlatformCode
	categories map[string]*uuid.UUID
	summary    CatalogSummary
}

// Reconcile pages through the session's categories and products and upserts
// them for the merchant. Slug exhaustion and repository failures abort the run.
func (r *CatalogReconciler) Reconcile(ctx context.Context, merchantID uuid.UUID, session integration.Session, platform integration.PlatformCode) (*CatalogSummary, error) {
	run := &catalogRun{
		merchantID: merchantID,
		platform:   platform,
		categories: make(map[string]*uuid.UUID),
	}

	if err := r.syncCategories(ctx, run, session); err != nil {
		return &run.summary, err
	}

	cursor := integration.PageCursor{}
	for page := 1; ; page++ {
		if r.maxPages > 0 && page > r.maxPages {
			r.logger.Warn("Product listing exceeds page limit, stopping",
				zap.String("merchant_id", merchantID.String()),
				zap.Int("max_pages", r.maxPages),
			)
			break
		}

		result, err := session.ListProducts(ctx, cursor)
		if err != nil {
			return &run.summary, fmt.Errorf("failed to list products page %d: %w", page, err)
		}
		run.summary.PagesFetched++

		for i := range result.Items {
			if err := r.upsertProduct(ctx, run, &result.Items[i]); err != nil {
				return &run.summary, err
			}
		}

		next, ok := integration.NextCursor(result.Pagination)
		if !ok {
			break
		}
		cursor = next
	}

	r.logger.Info("Catalog reconciled",
		zap.String("merchant_id", merchantID.String()),
		zap.String("platform", platform.String()),
		zap.Int("pages", run.summary.PagesFetched),
		zap.Int("products_created", run.summary.ProductsCreated),
		zap.Int("products_updated", run.summary.ProductsUpdated),
		zap.Int("categories_created", run.summary.CategoriesCreated),
		zap.Int("categories_updated", run.summary.CategoriesUpdated),
	)
	return &run.summary, nil
}

// UpsertProduct applies one product outside a paged run, as the webhook
// product path does. The category is resolved from the repository only.
func (r *CatalogReconciler) UpsertProduct(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, ext *integration.ExternalProduct) (*CatalogSummary, error) {
	run := &catalogRun{
		merchantID: merchantID,
		platform:   platform,
		categories: make(map[string]*uuid.UUID),
	}
	if err := r.upsertProduct(ctx, run, ext); err != nil {
		return nil, err
	}
	return &run.summary, nil
}

// syncCategories upserts every listed category once and seeds the run cache
func (r *CatalogReconciler) syncCategories(ctx context.Context, run *catalogRun, session integration.Session) error {
	categories, err := session.ListCategories(ctx)
	if err != nil {
		if errors.Is(err, integration.ErrUpstreamNotFound) {
			r.logger.Warn("Store exposes no category listing, products stay uncategorized",
				zap.String("merchant_id", run.merchantID.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to list categories: %w", err)
	}

	for i := range categories {
		ext := &categories[i]
		if ext.ExternalID == "" {
			continue
		}
		if _, seen := run.categories[ext.ExternalID]; seen {
			continue
		}
		id, err := r.upsertCategory(ctx, run, ext)
		if err != nil {
			return err
		}
		run.categories[ext.ExternalID] = &id
	}
	return nil
}

func (r *CatalogReconciler) upsertCategory(ctx context.Context, run *catalogRun, ext *integration.ExternalCategory) (uuid.UUID, error) {
	existing, err := r.categories.FindByExternalID(ctx, run.merchantID, run.platform, ext.ExternalID)
	switch {
	case err == nil:
		if existing.ApplyExternal(ext) {
			if err := r.categories.Update(ctx, existing); err != nil {
				return uuid.Nil, fmt.Errorf("failed to update category %s: %w", ext.ExternalID, err)
			}
			run.summary.CategoriesUpdated++
		}
		return existing.ID, nil
	case errors.Is(err, catalog.ErrCategoryNotFound):
		category := catalog.NewCategory(run.merchantID, run.platform, ext)
		if err := r.categories.Create(ctx, category); err != nil {
			return uuid.Nil, fmt.Errorf("failed to create category %s: %w", ext.ExternalID, err)
		}
		run.summary.CategoriesCreated++
		return category.ID, nil
	default:
		return uuid.Nil, fmt.Errorf("failed to load category %s: %w", ext.ExternalID, err)
	}
}

// resolveCategory maps a product's category reference to a stored category.
// References the listing did not contain are looked up once and cached,
// including misses.
func (r *CatalogReconciler) resolveCategory(ctx context.Context, run *catalogRun, ref *string) (*uuid.UUID, error) {
	if ref == nil || *ref == "" {
		return nil, nil
	}
	if id, ok := run.categories[*ref]; ok {
		return id, nil
	}

	existing, err := r.categories.FindByExternalID(ctx, run.merchantID, run.platform, *ref)
	switch {
	case err == nil:
		run.categories[*ref] = &existing.ID
		return &existing.ID, nil
	case errors.Is(err, catalog.ErrCategoryNotFound):
		r.logger.Debug("Product references an unknown category",
			zap.String("merchant_id", run.merchantID.String()),
			zap.String("category_ref", *ref),
		)
		run.categories[*ref] = nil
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to load category %s: %w", *ref, err)
	}
}

func (r *CatalogReconciler) upsertProduct(ctx context.Context, run *catalogRun, ext *integration.ExternalProduct) error {
	if ext.ExternalID == "" {
		r.logger.Warn("Skipping product without external id",
			zap.String("merchant_id", run.merchantID.String()),
			zap.String("title", ext.Title),
		)
		return nil
	}
	run.summary.ProductsSeen++

	categoryID, err := r.resolveCategory(ctx, run, ext.CategoryRef)
	if err != nil {
		return err
	}

	existing, err := r.products.FindByExternalID(ctx, run.merchantID, run.platform, ext.ExternalID)
	switch {
	case err == nil:
		changed, wentOutOfStock := existing.ApplyExternal(ext, categoryID)
		if !changed {
			return nil
		}
		if err := r.products.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to update product %s: %w", ext.ExternalID, err)
		}
		run.summary.ProductsUpdated++
		if wentOutOfStock {
			r.notifyOutOfStock(ctx, existing)
		}
		return nil

	case errors.Is(err, catalog.ErrProductNotFound):
		base := catalog.BaseProductSlug(run.merchantID, ext.ExternalID, ext.Title)
		slug, err := catalog.AllocateSlug(ctx, r.products, base, r.maxSlugAttempts)
		if err != nil {
			return fmt.Errorf("product %s: %w", ext.ExternalID, err)
		}
		product := catalog.NewProduct(run.merchantID, run.platform, slug, ext, categoryID)
		if err := r.products.Create(ctx, product); err != nil {
			return fmt.Errorf("failed to create product %s: %w", ext.ExternalID, err)
		}
		run.summary.ProductsCreated++
		return nil

	default:
		return fmt.Errorf("failed to load product %s: %w", ext.ExternalID, err)
	}
}

// notifyOutOfStock publishes the out-of-stock event. Failures are logged only.
func (r *CatalogReconciler) notifyOutOfStock(ctx context.Context, product *catalog.Product) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, catalog.NewProductOutOfStockEvent(product)); err != nil {
		r.logger.Warn("Failed to publish out-of-stock event",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
	}
}
