// Package order contains marketplace orders synced from merchant stores or
// received by webhook, and the status vocabulary tables for each platform.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
)

var ErrOrderNotFound = shared.NewDomainError("ORDER_NOT_FOUND", "Order not found")

// Order is a platform order. ExternalOrderID is the natural key shared by the
// sync and webhook paths.
type Order struct {
	shared.BaseEntity
	MerchantID      uuid.UUID
	Platform        integration.PlatformCode
	ExternalOrderID string
	ProductID       *uuid.UUID
	TotalAmount     decimal.Decimal
	Currency        string
	Status          Status
	StatusRaw       string
	PaymentStatus   string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ReferrerCode    string
	PlacedAt        time.Time
}

// FromExternal builds an order from its normalized external form
func FromExternal(merchantID uuid.UUID, platform integration.PlatformCode, ext *integration.ExternalOrder, productID *uuid.UUID) *Order {
	placedAt := ext.CreatedAt
	if placedAt.IsZero() {
		placedAt = time.Now()
	}
	return &Order{
		BaseEntity:      shared.NewBaseEntity(),
		MerchantID:      merchantID,
		Platform:        platform,
		ExternalOrderID: ext.ExternalID,
		ProductID:       productID,
		TotalAmount:     ext.TotalAmount,
		Currency:        ext.Currency,
		Status:          MapStatus(platform, ext.StatusRaw),
		StatusRaw:       ext.StatusRaw,
		PaymentStatus:   ext.PaymentStatusRaw,
		CustomerName:    ext.Customer.Name,
		CustomerEmail:   ext.Customer.Email,
		CustomerPhone:   ext.Customer.Phone,
		ReferrerCode:    ext.ReferrerCode,
		PlacedAt:        placedAt,
	}
}

// FillFrom adopts the identity of the stored row and keeps its values where
// this sighting carries none, as in a status-only webhook. A zero total keeps
// the stored amount together with its currency. A product match is never
// cleared by a later unmatched sighting.
func (o *Order) FillFrom(stored *Order) {
	o.ID = stored.ID
	o.CreatedAt = stored.CreatedAt
	if o.ProductID == nil {
		o.ProductID = stored.ProductID
	}
	if o.TotalAmount.IsZero() {
		o.TotalAmount = stored.TotalAmount
		o.Currency = stored.Currency
	}
	if o.StatusRaw == "" {
		o.Status = stored.Status
		o.StatusRaw = stored.StatusRaw
	}
	keep(&o.PaymentStatus, stored.PaymentStatus)
	keep(&o.CustomerName, stored.CustomerName)
	keep(&o.CustomerEmail, stored.CustomerEmail)
	keep(&o.CustomerPhone, stored.CustomerPhone)
	keep(&o.ReferrerCode, stored.ReferrerCode)
}

func keep(field *string, stored string) {
	if *field == "" {
		*field = stored
	}
}

// Repository persists orders
type Repository interface {
	// Upsert inserts or updates the row keyed by ExternalOrderID and reports
	// whether a new row was created. On update the stored ID is written back.
	Upsert(ctx context.Context, order *Order) (created bool, err error)
	FindByExternalID(ctx context.Context, externalOrderID string) (*Order, error)
}
