package catalog

import (
	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/shared"
)

// AggregateTypeProduct is the aggregate type for product events
const AggregateTypeProduct = "Product"

// EventTypeProductOutOfStock is published when a synced product drops to zero stock
const EventTypeProductOutOfStock = "catalog.product.out_of_stock"

// ProductOutOfStockEvent is published when a previously in-stock product reaches zero quantity
type ProductOutOfStockEvent struct {
	shared.BaseDomainEvent
	ProductID  uuid.UUID `json:"product_id"`
	ExternalID string    `json:"external_id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
}

// NewProductOutOfStockEvent creates a new ProductOutOfStockEvent
func NewProductOutOfStockEvent(p *Product) *ProductOutOfStockEvent {
	return &ProductOutOfStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductOutOfStock, AggregateTypeProduct, p.ID, p.MerchantID),
		ProductID:       p.ID,
		ExternalID:      p.ExternalID,
		Slug:            p.Slug,
		Title:           p.Title,
	}
}
