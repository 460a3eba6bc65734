package event

import (
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/order"
)

// RegisterAllEvents registers every published domain event type with the serializer
func RegisterAllEvents(serializer *EventSerializer) {
	// Catalog
	serializer.Register(catalog.EventTypeProductOutOfStock, &catalog.ProductOutOfStockEvent{})

	// Orders
	serializer.Register(order.EventTypeOrderPaid, &order.OrderStatusEvent{})
	serializer.Register(order.EventTypeOrderCancelled, &order.OrderStatusEvent{})
}

// PublishedEventTypes lists the event types forwarded to external consumers
func PublishedEventTypes() []string {
	return []string{
		catalog.EventTypeProductOutOfStock,
		order.EventTypeOrderPaid,
		order.EventTypeOrderCancelled,
	}
}
