package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// maxCategoryPages bounds the category walk of a single sync
const maxCategoryPages = 50

// SallaAdapter implements integration.Platform for Salla.
// Salla listings report page counts, so sessions return ByCount pagination.
type SallaAdapter struct {
	config *AdapterConfig
	client *ResilientClient
	retry  RetryPolicy
	logger *zap.Logger
	mapper sallaMapper
}

// NewSallaAdapter creates a new Salla adapter with the given configuration
func NewSallaAdapter(config *AdapterConfig, client *ResilientClient, retry RetryPolicy, logger *zap.Logger) (*SallaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("salla: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SallaAdapter{
		config: config,
		client: client,
		retry:  retry,
		logger: logger,
		mapper: sallaMapper{
			log:      fieldLogger{logger: logger, platform: integration.PlatformSalla},
			currency: config.DefaultCurrency,
			loc:      config.location(),
		},
	}, nil
}

// Code returns the platform code
func (a *SallaAdapter) Code() integration.PlatformCode {
	return integration.PlatformSalla
}

// NewSession binds the adapter to one store and credential source
func (a *SallaAdapter) NewSession(store integration.StoreConnection, creds integration.CredentialSource) integration.Session {
	return &sallaSession{
		apiSession: newAPISession(integration.PlatformSalla, a.config.baseURL(), store, creds, a.client, a.retry, sallaAuth, a.logger),
		pageSize:   a.config.PageSize,
		mapper:     a.mapper,
	}
}

func sallaAuth(h http.Header, token string, _ integration.StoreConnection) {
	h.Set("Authorization", "Bearer "+token)
}

// sallaSession performs reads against one Salla store
type sallaSession struct {
	*apiSession
	pageSize int
	mapper   sallaMapper
}

var _ integration.Platform = (*SallaAdapter)(nil)
var _ integration.Session = (*sallaSession)(nil)

// ListCategories walks the full category tree
func (s *sallaSession) ListCategories(ctx context.Context) ([]integration.ExternalCategory, error) {
	var categories []integration.ExternalCategory
	for page := 1; page <= maxCategoryPages; page++ {
		var resp SallaListResponse[SallaCategory]
		if err := s.getJSON(ctx, "/categories", s.pageQuery(page), &resp); err != nil {
			return nil, err
		}
		for i := range resp.Data {
			categories = s.mapper.appendCategories(categories, &resp.Data[i])
		}
		if _, more := integration.NextCursor(s.pagination(resp.Pagination, page)); !more {
			break
		}
	}
	return categories, nil
}

// ListProducts fetches one product page
func (s *sallaSession) ListProducts(ctx context.Context, cursor integration.PageCursor) (*integration.ProductPage, error) {
	page := max(cursor.Page, 1)
	var resp SallaListResponse[SallaProduct]
	if err := s.getJSON(ctx, "/products", s.pageQuery(page), &resp); err != nil {
		return nil, err
	}

	items := make([]integration.ExternalProduct, 0, len(resp.Data))
	for i := range resp.Data {
		if resp.Data[i].ID == "" {
			s.logger.Warn("Skipping product without id", zap.Int("page", page))
			continue
		}
		items = append(items, s.mapper.product(&resp.Data[i]))
	}
	return &integration.ProductPage{
		Items:      items,
		Pagination: s.pagination(resp.Pagination, page),
	}, nil
}

// ListOrders fetches one page of order summaries
func (s *sallaSession) ListOrders(ctx context.Context, cursor integration.PageCursor) (*integration.OrderPage, error) {
	page := max(cursor.Page, 1)
	var resp SallaListResponse[SallaOrder]
	if err := s.getJSON(ctx, "/orders", s.pageQuery(page), &resp); err != nil {
		return nil, err
	}

	orders := make([]integration.ExternalOrder, 0, len(resp.Data))
	for i := range resp.Data {
		if resp.Data[i].ID == "" {
			continue
		}
		orders = append(orders, s.mapper.order(&resp.Data[i]))
	}
	return &integration.OrderPage{
		Orders:     orders,
		Pagination: s.pagination(resp.Pagination, page),
	}, nil
}

// GetOrder fetches one order with its line items
func (s *sallaSession) GetOrder(ctx context.Context, externalID string) (*integration.ExternalOrder, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: empty order id", integration.ErrUpstreamClient)
	}
	var resp SallaItemResponse[SallaOrder]
	if err := s.getJSON(ctx, "/orders/"+url.PathEscape(externalID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: salla order %s has no id", integration.ErrInvalidResponse, externalID)
	}
	order := s.mapper.order(&resp.Data)
	if order.LineItems == nil {
		order.LineItems = []integration.ExternalLineItem{}
	}
	return &order, nil
}

func (s *sallaSession) pageQuery(page int) url.Values {
	return url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(s.pageSize)},
	}
}

func (s *sallaSession) pagination(p SallaPagination, requested int) integration.ByCount {
	current := p.CurrentPage
	if current <= 0 {
		current = requested
	}
	return integration.ByCount{Current: current, Total: p.TotalPages}
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// sallaMapper converts Salla payloads into normalized shapes.
// It is shared by the sessions and the webhook normalizer.
type sallaMapper struct {
	log      fieldLogger
	currency string
	loc      *time.Location
}

func (m sallaMapper) appendCategories(dst []integration.ExternalCategory, c *SallaCategory) []integration.ExternalCategory {
	if c.ID != "" {
		dst = append(dst, integration.ExternalCategory{
			ExternalID: c.ID.String(),
			Name:       strings.TrimSpace(c.Name),
		})
	}
	for i := range c.SubCategories {
		dst = m.appendCategories(dst, &c.SubCategories[i])
	}
	return dst
}

func (m sallaMapper) product(p *SallaProduct) integration.ExternalProduct {
	id := p.ID.String()
	ext := integration.ExternalProduct{
		ExternalID:   id,
		Title:        strings.TrimSpace(p.Name),
		Description:  p.Description,
		CanonicalURL: stringPtr(p.URLs.Customer),
	}

	ext.Price, ext.Currency = m.money(p.Price, "product", "price", id)

	if !p.Unlimited.Value {
		var skuQuantities []int
		if p.SKUs != nil {
			skuQuantities = make([]int, 0, len(p.SKUs))
			for _, sku := range p.SKUs {
				skuQuantities = append(skuQuantities, sku.StockQuantity.Value)
			}
		}
		ext.StockQuantity = integration.NormalizeQuantity(p.Quantity.Ptr(), skuQuantities)
	}
	ext.IsActive = integration.DeriveActive(p.IsListed(), ext.StockQuantity)

	media := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		media = append(media, img.URL)
	}
	ext.Images = integration.NormalizeImages(media, p.MainImage)
	ext.Thumbnail = firstNonEmpty(p.Thumbnail, p.MainImage)
	if ext.Thumbnail == "" && len(ext.Images) > 0 {
		ext.Thumbnail = ext.Images[0]
	}

	for _, c := range p.Categories {
		if c.ID != "" {
			ext.CategoryRef = stringPtr(c.ID.String())
			break
		}
	}
	return ext
}

func (m sallaMapper) order(o *SallaOrder) integration.ExternalOrder {
	id := o.ID.String()
	ext := integration.ExternalOrder{
		ExternalID:       id,
		StatusRaw:        o.Status.Slug,
		PaymentStatusRaw: o.PaymentStatus,
		ReferrerCode:     strings.TrimSpace(o.ReferralCode),
		Customer: integration.ExternalCustomer{
			Name:  o.Customer.FullName(),
			Email: strings.TrimSpace(o.Customer.Email),
			Phone: o.Customer.Phone(),
		},
		CreatedAt: parsePlatformTime(o.Date.Date, m.zone(o.Date.Timezone)),
	}
	ext.TotalAmount, ext.Currency = m.money(o.total(), "order", "total", id)

	if o.Items != nil {
		ext.LineItems = make([]integration.ExternalLineItem, 0, len(o.Items))
		for _, item := range o.Items {
			ext.LineItems = append(ext.LineItems, integration.ExternalLineItem{
				ProductExternalID: item.Product.ID.String(),
				Title:             strings.TrimSpace(item.Name),
				Quantity:          item.Quantity.Value,
				UnitPrice:         item.Amounts.PriceWithoutTax.Amount.Value,
			})
		}
	}
	return ext
}

// money reads an amount and currency, logging every fallback
func (m sallaMapper) money(v *SallaMoney, kind, field, id string) (decimal.Decimal, string) {
	amount := decimal.Zero
	currency := m.currency
	if v == nil || !v.Amount.Valid {
		m.log.defaulted(kind, field+".amount", id, "0")
	} else {
		amount = v.Amount.Value
	}
	if v == nil || strings.TrimSpace(v.Currency) == "" {
		m.log.defaulted(kind, field+".currency", id, m.currency)
	} else {
		currency = strings.ToUpper(strings.TrimSpace(v.Currency))
	}
	return amount, currency
}

func (m sallaMapper) zone(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return m.loc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
