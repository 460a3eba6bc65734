package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/tracking"
	"go.uber.org/zap"
)

// OrderRecorder stores external orders for the sync and webhook paths. Both
// converge on the same row through the external order id.
type OrderRecorder struct {
	products catalog.ProductRepository
	orders   order.Repository
	trending tracking.TrendingLogRepository
	weights  tracking.Weights
	logger   *zap.Logger
}

// NewOrderRecorder creates a new OrderRecorder. trending may be nil, in which
// case new orders produce no trending signal.
func NewOrderRecorder(
	products catalog.ProductRepository,
	orders order.Repository,
	trending tracking.TrendingLogRepository,
	weights tracking.Weights,
	logger *zap.Logger,
) *OrderRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderRecorder{
		products: products,
		orders:   orders,
		trending: trending,
		weights:  weights,
		logger:   logger,
	}
}

// RecordedOrder is the result of storing one order
type RecordedOrder struct {
	Order   *order.Order
	Created bool
}

// Matched reports whether the order is linked to a catalog product
func (r *RecordedOrder) Matched() bool {
	return r.Order.ProductID != nil
}

// Record matches the order to a product and upserts it. A newly created,
// matched order appends an ORDER trending entry and bumps the product's order
// counter; replays of the same order do neither.
func (r *OrderRecorder) Record(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, ext *integration.ExternalOrder) (*RecordedOrder, error) {
	productID, err := r.MatchProduct(ctx, merchantID, platform, ext.LineItems)
	if err != nil {
		return nil, err
	}

	o := order.FromExternal(merchantID, platform, ext, productID)
	created, err := r.orders.Upsert(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert order %s: %w", ext.ExternalID, err)
	}

	if created && o.ProductID != nil {
		r.recordOrderSignal(ctx, *o.ProductID)
	}
	return &RecordedOrder{Order: o, Created: created}, nil
}

// MatchProduct links line items to a catalog product: the first exact
// external id match wins, then the first case-insensitive title match.
func (r *OrderRecorder) MatchProduct(ctx context.Context, merchantID uuid.UUID, platform integration.PlatformCode, items []integration.ExternalLineItem) (*uuid.UUID, error) {
	for _, item := range items {
		if item.ProductExternalID == "" {
			continue
		}
		p, err := r.products.FindByExternalID(ctx, merchantID, platform, item.ProductExternalID)
		if err == nil {
			return &p.ID, nil
		}
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("failed to match product %s: %w", item.ProductExternalID, err)
		}
	}

	for _, item := range items {
		if item.Title == "" {
			continue
		}
		p, err := r.products.FindByTitle(ctx, merchantID, item.Title)
		if err == nil {
			return &p.ID, nil
		}
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("failed to match product by title: %w", err)
		}
	}
	return nil, nil
}

func (r *OrderRecorder) recordOrderSignal(ctx context.Context, productID uuid.UUID) {
	if r.trending != nil {
		if err := r.trending.Append(ctx, tracking.NewTrendingLog(productID, tracking.EventOrder, r.weights)); err != nil {
			r.logger.Warn("Failed to append order trending entry",
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
		}
	}
	if err := r.products.IncrementCounter(ctx, productID, catalog.CounterOrders); err != nil {
		r.logger.Warn("Failed to increment order counter",
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}
