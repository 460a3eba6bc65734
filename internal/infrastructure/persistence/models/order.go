package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order domain entity.
// external_order_id is the natural key shared by sync and webhooks.
type OrderModel struct {
	BaseModel
	MerchantID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	Platform        integration.PlatformCode `gorm:"type:varchar(20);not null"`
	ExternalOrderID string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_external_id"`
	ProductID       *uuid.UUID               `gorm:"type:uuid;index"`
	TotalAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Currency        string                   `gorm:"type:varchar(3);not null;default:'SAR'"`
	Status          order.Status             `gorm:"type:varchar(20);not null;default:'PENDING'"`
	StatusRaw       string                   `gorm:"type:varchar(100)"`
	PaymentStatus   string                   `gorm:"type:varchar(100)"`
	CustomerName    string                   `gorm:"type:varchar(200)"`
	CustomerEmail   string                   `gorm:"type:varchar(200)"`
	CustomerPhone   string                   `gorm:"type:varchar(50)"`
	ReferrerCode    string                   `gorm:"type:varchar(100);index"`
	PlacedAt        time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *order.Order {
	return &order.Order{
		BaseEntity:      m.BaseModel.Entity(),
		MerchantID:      m.MerchantID,
		Platform:        m.Platform,
		ExternalOrderID: m.ExternalOrderID,
		ProductID:       m.ProductID,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		Status:          m.Status,
		StatusRaw:       m.StatusRaw,
		PaymentStatus:   m.PaymentStatus,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		CustomerPhone:   m.CustomerPhone,
		ReferrerCode:    m.ReferrerCode,
		PlacedAt:        m.PlacedAt,
	}
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.SetEntity(o.BaseEntity)
	m.MerchantID = o.MerchantID
	m.Platform = o.Platform
	m.ExternalOrderID = o.ExternalOrderID
	m.ProductID = o.ProductID
	m.TotalAmount = o.TotalAmount
	m.Currency = o.Currency
	m.Status = o.Status
	m.StatusRaw = o.StatusRaw
	m.PaymentStatus = o.PaymentStatus
	m.CustomerName = o.CustomerName
	m.CustomerEmail = o.CustomerEmail
	m.CustomerPhone = o.CustomerPhone
	m.ReferrerCode = o.ReferrerCode
	m.PlacedAt = o.PlacedAt
}

// OrderModelFromDomain creates a new persistence model from a domain Order entity.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}
