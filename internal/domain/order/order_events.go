package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/shared"
)

// AggregateTypeOrder is the aggregate type for order events
const AggregateTypeOrder = "Order"

const (
	EventTypeOrderPaid      = "order.order.paid"
	EventTypeOrderCancelled = "order.order.cancelled"
)

// OrderStatusEvent is published when a webhook confirms payment or cancellation
type OrderStatusEvent struct {
	shared.BaseDomainEvent
	OrderID         uuid.UUID       `json:"order_id"`
	ExternalOrderID string          `json:"external_order_id"`
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	ReferrerCode    string          `json:"referrer_code,omitempty"`
}

// NewOrderStatusEvent creates an event of the given type for o
func NewOrderStatusEvent(eventType string, o *Order) *OrderStatusEvent {
	return &OrderStatusEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID, o.MerchantID),
		OrderID:         o.ID,
		ExternalOrderID: o.ExternalOrderID,
		ProductID:       o.ProductID,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		ReferrerCode:    o.ReferrerCode,
	}
}
