package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExternalCategory is a platform category in normalized form
type ExternalCategory struct {
	ExternalID string
	Name       string
	NameAr     *string
}

// ExternalProduct is a platform product in normalized form.
// StockQuantity is nil when the platform reports no stock at all,
// which means "always in stock".
type ExternalProduct struct {
	ExternalID    string
	Title         string
	TitleAr       *string
	Description   string
	Price         decimal.Decimal
	Currency      string
	Images        []string
	Thumbnail     string
	StockQuantity *int
	IsActive      bool
	CategoryRef   *string
	CanonicalURL  *string
}

// InStock reports whether the normalized quantity allows a purchase
func (p *ExternalProduct) InStock() bool {
	return p.StockQuantity == nil || *p.StockQuantity > 0
}

// ExternalCustomer holds buyer contact fields
type ExternalCustomer struct {
	Name  string
	Email string
	Phone string
}

// ExternalLineItem is a single order line
type ExternalLineItem struct {
	ProductExternalID string
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal
}

// ExternalOrder is a platform order in normalized form. Listing endpoints
// return summaries with empty LineItems; GetOrder returns the detail.
type ExternalOrder struct {
	ExternalID       string
	TotalAmount      decimal.Decimal
	Currency         string
	StatusRaw        string
	PaymentStatusRaw string
	LineItems        []ExternalLineItem
	Customer         ExternalCustomer
	ReferrerCode     string
	CreatedAt        time.Time
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// Pagination tells a reconciler whether another listing page exists.
// Exactly one of ByCount or ByCursor is returned per page.
type Pagination interface {
	isPagination()
}

// ByCount pagination reports the current page and the total page count
type ByCount struct {
	Current int
	Total   int
}

// ByCursor pagination reports whether a next link exists
type ByCursor struct {
	HasNext bool
	Next    string
}

func (ByCount) isPagination()  {}
func (ByCursor) isPagination() {}

// NextCursor returns the cursor for the following page, or false when the listing is exhausted
func NextCursor(p Pagination) (PageCursor, bool) {
	switch v := p.(type) {
	case ByCount:
		if v.Current >= v.Total {
			return PageCursor{}, false
		}
		return PageCursor{Page: v.Current + 1}, true
	case ByCursor:
		if !v.HasNext || v.Next == "" {
			return PageCursor{}, false
		}
		return PageCursor{Next: v.Next}, true
	}
	return PageCursor{}, false
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Items      []ExternalProduct
	Pagination Pagination
}

// OrderPage is one page of order summaries
type OrderPage struct {
	Orders     []ExternalOrder
	Pagination Pagination
}

// ---------------------------------------------------------------------------
// Normalization policy
// ---------------------------------------------------------------------------

// NormalizeQuantity applies the stock policy shared by all adapters:
// a non-zero top-level quantity wins, otherwise the SKU quantities are summed.
// A nil skuQuantities slice means the platform sent no SKU field. When neither
// field exists the result is nil.
func NormalizeQuantity(topLevel *int, skuQuantities []int) *int {
	if topLevel != nil && *topLevel != 0 {
		q := *topLevel
		return &q
	}
	if skuQuantities != nil {
		sum := 0
		for _, q := range skuQuantities {
			sum += q
		}
		return &sum
	}
	if topLevel != nil {
		zero := 0
		return &zero
	}
	return nil
}

// DeriveActive combines the platform active flag with the stock quantity
func DeriveActive(platformActive bool, quantity *int) bool {
	return platformActive && (quantity == nil || *quantity > 0)
}

// NormalizeImages returns every media URL in platform order,
// falling back to the primary image when no media array was sent.
func NormalizeImages(media []string, primary string) []string {
	images := make([]string, 0, len(media))
	for _, u := range media {
		if u != "" {
			images = append(images, u)
		}
	}
	if len(images) == 0 && primary != "" {
		images = append(images, primary)
	}
	return images
}
