package catalog

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
)

var (
	ErrProductNotFound        = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
	ErrDestinationUnavailable = shared.NewDomainError("DESTINATION_UNAVAILABLE", "Product has no outbound destination")
	ErrSlugExhausted          = shared.NewDomainError("SLUG_EXHAUSTED", "Could not allocate a unique product slug")
)

// Counter names a denormalized product counter
type Counter string

const (
	CounterViews  Counter = "view_count"
	CounterClicks Counter = "click_count"
	CounterOrders Counter = "order_count"
)

// Product is a marketplace listing backed by one external product
type Product struct {
	shared.BaseEntity
	MerchantID    uuid.UUID
	Platform      integration.PlatformCode
	ExternalID    string
	Slug          string
	Title         string
	TitleAr       string
	Description   string
	Price         decimal.Decimal
	Currency      string
	Images        []string
	Thumbnail     string
	StockQuantity *int
	IsActive      bool
	InStock       bool
	CategoryID    *uuid.UUID
	ExternalURL   string
	TrendingScore float64
	ViewCount     int64
	ClickCount    int64
	OrderCount    int64
}

// NewProduct creates a product from its normalized external form
func NewProduct(merchantID uuid.UUID, platform integration.PlatformCode, slug string, ext *integration.ExternalProduct, categoryID *uuid.UUID) *Product {
	p := &Product{
		BaseEntity: shared.NewBaseEntity(),
		MerchantID: merchantID,
		Platform:   platform,
		ExternalID: ext.ExternalID,
		Slug:       slug,
	}
	p.ApplyExternal(ext, categoryID)
	return p
}

// ApplyExternal copies the synced fields onto the product. The slug is never
// touched. It reports whether anything changed and whether the product went
// from in stock to a zero quantity.
func (p *Product) ApplyExternal(ext *integration.ExternalProduct, categoryID *uuid.UUID) (changed, wentOutOfStock bool) {
	wasInStock := p.InStock
	inStock := ext.InStock()

	titleAr := ""
	if ext.TitleAr != nil {
		titleAr = *ext.TitleAr
	}
	externalURL := ""
	if ext.CanonicalURL != nil {
		externalURL = *ext.CanonicalURL
	}

	changed = p.Title != ext.Title ||
		p.TitleAr != titleAr ||
		p.Description != ext.Description ||
		!p.Price.Equal(ext.Price) ||
		p.Currency != ext.Currency ||
		!slices.Equal(p.Images, ext.Images) ||
		p.Thumbnail != ext.Thumbnail ||
		!equalQuantity(p.StockQuantity, ext.StockQuantity) ||
		p.IsActive != ext.IsActive ||
		p.InStock != inStock ||
		!equalUUID(p.CategoryID, categoryID) ||
		p.ExternalURL != externalURL

	if !changed {
		return false, false
	}

	p.Title = ext.Title
	p.TitleAr = titleAr
	p.Description = ext.Description
	p.Price = ext.Price
	p.Currency = ext.Currency
	p.Images = slices.Clone(ext.Images)
	p.Thumbnail = ext.Thumbnail
	p.StockQuantity = ext.StockQuantity
	p.IsActive = ext.IsActive
	p.InStock = inStock
	p.CategoryID = categoryID
	p.ExternalURL = externalURL
	p.Touch()

	wentOutOfStock = wasInStock && ext.StockQuantity != nil && *ext.StockQuantity == 0
	return true, wentOutOfStock
}

// Destination resolves the outbound URL for a click: the explicit external URL
// if present, else the store URL template applied to the external id.
func (p *Product) Destination(storeURLTemplate func(externalID string) string) (string, error) {
	if p.ExternalURL != "" {
		return p.ExternalURL, nil
	}
	if storeURLTemplate != nil {
		if u := storeURLTemplate(p.ExternalID); u != "" {
			return u, nil
		}
	}
	return "", ErrDestinationUnavailable
}

func equalQuantity(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
