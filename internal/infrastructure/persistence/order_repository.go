package persistence

import (
	"context"
	"errors"

	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// orderSyncedColumns are overwritten when an order is seen again
var orderSyncedColumns = []string{
	"merchant_id", "platform", "product_id", "total_amount", "currency",
	"status", "status_raw", "payment_status",
	"customer_name", "customer_email", "customer_phone", "referrer_code",
	"updated_at",
}

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByExternalID finds an order by its platform order id
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, externalOrderID string) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("external_order_id = ?", externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the order or updates the row with the same external order id.
// The sync and webhook paths may race on a new order; the loser of the insert
// falls through to the update so both calls succeed and exactly one reports created.
func (r *GormOrderRepository) Upsert(ctx context.Context, o *order.Order) (bool, error) {
	existing, err := r.FindByExternalID(ctx, o.ExternalOrderID)
	switch {
	case err == nil:
		return false, r.update(ctx, existing, o)
	case !errors.Is(err, order.ErrOrderNotFound):
		return false, err
	}

	err = r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	existing, err = r.FindByExternalID(ctx, o.ExternalOrderID)
	if err != nil {
		return false, err
	}
	return false, r.update(ctx, existing, o)
}

// update overwrites the synced columns of stored with what o knows
func (r *GormOrderRepository) update(ctx context.Context, stored, o *order.Order) error {
	o.FillFrom(stored)
	model := models.OrderModelFromDomain(o)
	result := r.db.WithContext(ctx).
		Model(model).
		Select(orderSyncedColumns).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

var _ order.Repository = (*GormOrderRepository)(nil)
