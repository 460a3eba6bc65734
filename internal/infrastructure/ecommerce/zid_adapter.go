package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// ZidAdapter implements integration.Platform for Zid.
// The Zid product listing exposes a next link, so product pages use
// ByCursor pagination; the order listing reports a total count.
type ZidAdapter struct {
	config *AdapterConfig
	client *ResilientClient
	retry  RetryPolicy
	logger *zap.Logger
	mapper zidMapper
}

// NewZidAdapter creates a new Zid adapter with the given configuration
func NewZidAdapter(config *AdapterConfig, client *ResilientClient, retry RetryPolicy, logger *zap.Logger) (*ZidAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("zid: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZidAdapter{
		config: config,
		client: client,
		retry:  retry,
		logger: logger,
		mapper: zidMapper{
			log:      fieldLogger{logger: logger, platform: integration.PlatformZid},
			currency: config.DefaultCurrency,
			loc:      config.location(),
		},
	}, nil
}

// Code returns the platform code
func (a *ZidAdapter) Code() integration.PlatformCode {
	return integration.PlatformZid
}

// NewSession binds the adapter to one store and credential source
func (a *ZidAdapter) NewSession(store integration.StoreConnection, creds integration.CredentialSource) integration.Session {
	return &zidSession{
		apiSession: newAPISession(integration.PlatformZid, a.config.baseURL(), store, creds, a.client, a.retry, zidAuth, a.logger),
		pageSize:   a.config.PageSize,
		mapper:     a.mapper,
	}
}

// zidAuth sets the manager token headers Zid expects on store endpoints
func zidAuth(h http.Header, token string, store integration.StoreConnection) {
	h.Set("Authorization", "Bearer "+token)
	h.Set("X-Manager-Token", token)
	if store.StoreID != "" {
		h.Set("Store-Id", store.StoreID)
	}
	h.Set("Role", "Manager")
}

// zidSession performs reads against one Zid store
type zidSession struct {
	*apiSession
	pageSize int
	mapper   zidMapper
}

var _ integration.Platform = (*ZidAdapter)(nil)
var _ integration.Session = (*zidSession)(nil)

// ListCategories returns the flattened category tree
func (s *zidSession) ListCategories(ctx context.Context) ([]integration.ExternalCategory, error) {
	var resp ZidCategoryListResponse
	if err := s.getJSON(ctx, "/managers/store/categories", nil, &resp); err != nil {
		return nil, err
	}
	var categories []integration.ExternalCategory
	for i := range resp.Categories {
		categories = s.mapper.appendCategories(categories, &resp.Categories[i])
	}
	return categories, nil
}

// ListProducts fetches one product page, following cursor.Next when set
func (s *zidSession) ListProducts(ctx context.Context, cursor integration.PageCursor) (*integration.ProductPage, error) {
	var resp ZidProductListResponse
	var err error
	if cursor.Next != "" {
		err = s.getJSON(ctx, cursor.Next, nil, &resp)
	} else {
		err = s.getJSON(ctx, "/products/", url.Values{"page_size": {strconv.Itoa(s.pageSize)}}, &resp)
	}
	if err != nil {
		return nil, err
	}

	items := make([]integration.ExternalProduct, 0, len(resp.Results))
	for i := range resp.Results {
		if resp.Results[i].ID == "" {
			s.logger.Warn("Skipping product without id")
			continue
		}
		items = append(items, s.mapper.product(&resp.Results[i]))
	}

	next := ""
	if resp.Next != nil {
		next = strings.TrimSpace(*resp.Next)
	}
	return &integration.ProductPage{
		Items:      items,
		Pagination: integration.ByCursor{HasNext: next != "", Next: next},
	}, nil
}

// ListOrders fetches one page of order summaries
func (s *zidSession) ListOrders(ctx context.Context, cursor integration.PageCursor) (*integration.OrderPage, error) {
	page := max(cursor.Page, 1)
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(s.pageSize)},
	}
	var resp ZidOrderListResponse
	if err := s.getJSON(ctx, "/managers/store/orders", query, &resp); err != nil {
		return nil, err
	}

	orders := make([]integration.ExternalOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		if resp.Orders[i].ID == "" {
			continue
		}
		orders = append(orders, s.mapper.order(&resp.Orders[i]))
	}

	return &integration.OrderPage{
		Orders:     orders,
		Pagination: integration.ByCount{Current: page, Total: s.orderPages(page, resp.TotalOrderCount, len(resp.Orders))},
	}, nil
}

// orderPages derives the page count from total_order_count. Without a count a
// full page means another one may follow.
func (s *zidSession) orderPages(page, count, listed int) int {
	if count > 0 {
		return (count + s.pageSize - 1) / s.pageSize
	}
	if listed >= s.pageSize {
		s.logger.Warn("Order listing has no total count, probing next page", zap.Int("page", page))
		return page + 1
	}
	return page
}

// GetOrder fetches one order with its products
func (s *zidSession) GetOrder(ctx context.Context, externalID string) (*integration.ExternalOrder, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: empty order id", integration.ErrUpstreamClient)
	}
	var resp ZidOrderResponse
	if err := s.getJSON(ctx, "/managers/store/orders/"+url.PathEscape(externalID)+"/view", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order.ID == "" {
		return nil, fmt.Errorf("%w: zid order %s has no id", integration.ErrInvalidResponse, externalID)
	}
	order := s.mapper.order(&resp.Order)
	if order.LineItems == nil {
		order.LineItems = []integration.ExternalLineItem{}
	}
	return &order, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// zidMapper converts Zid payloads into normalized shapes
type zidMapper struct {
	log      fieldLogger
	currency string
	loc      *time.Location
}

func (m zidMapper) appendCategories(dst []integration.ExternalCategory, c *ZidCategory) []integration.ExternalCategory {
	if c.ID != "" {
		dst = append(dst, integration.ExternalCategory{
			ExternalID: c.ID.String(),
			Name:       strings.TrimSpace(c.Name.Default),
			NameAr:     c.Name.ArPtr(),
		})
	}
	for i := range c.SubCategories {
		dst = m.appendCategories(dst, &c.SubCategories[i])
	}
	return dst
}

func (m zidMapper) product(p *ZidProduct) integration.ExternalProduct {
	id := p.ID.String()
	ext := integration.ExternalProduct{
		ExternalID:   id,
		Title:        strings.TrimSpace(p.Name.Default),
		TitleAr:      p.Name.ArPtr(),
		Description:  p.Description.Default,
		CanonicalURL: stringPtr(p.HTMLURL),
	}

	if p.Price.Valid {
		ext.Price = p.Price.Value
	} else {
		m.log.defaulted("product", "price", id, "0")
	}
	ext.Currency = m.currencyOf(p.Currency, "product", id)

	if !p.IsInfinite.Value {
		var variantQuantities []int
		if p.Variants != nil {
			variantQuantities = make([]int, 0, len(p.Variants))
			for _, v := range p.Variants {
				variantQuantities = append(variantQuantities, v.Quantity.Value)
			}
		}
		ext.StockQuantity = integration.NormalizeQuantity(p.Quantity.Ptr(), variantQuantities)
	}

	// Older payloads omit is_published; those products are listed
	published := !p.IsPublished.Set || p.IsPublished.Value
	ext.IsActive = integration.DeriveActive(published, ext.StockQuantity)

	media := make([]string, 0, len(p.Images))
	for i := range p.Images {
		media = append(media, p.Images[i].URL())
	}
	ext.Images = integration.NormalizeImages(media, p.MainImage)
	if len(p.Images) > 0 {
		ext.Thumbnail = firstNonEmpty(p.Images[0].Image.Thumbnail, p.Images[0].Image.Small)
	}
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

func (m zidMapper) order(o *ZidOrder) integration.ExternalOrder {
	id := o.ID.String()
	ext := integration.ExternalOrder{
		ExternalID:       id,
		StatusRaw:        o.OrderStatus.Code,
		PaymentStatusRaw: o.PaymentStatus,
		ReferrerCode:     strings.TrimSpace(o.ReferralCode),
		Customer: integration.ExternalCustomer{
			Name:  strings.TrimSpace(o.Customer.Name),
			Email: strings.TrimSpace(o.Customer.Email),
			Phone: strings.TrimSpace(o.Customer.Mobile.String()),
		},
		CreatedAt: parsePlatformTime(o.CreatedAt, m.loc),
	}

	if o.OrderTotal.Valid {
		ext.TotalAmount = o.OrderTotal.Value
	} else {
		m.log.defaulted("order", "order_total", id, "0")
	}
	ext.Currency = m.currencyOf(o.CurrencyCode, "order", id)

	if o.Products != nil {
		ext.LineItems = make([]integration.ExternalLineItem, 0, len(o.Products))
		for _, p := range o.Products {
			ext.LineItems = append(ext.LineItems, integration.ExternalLineItem{
				ProductExternalID: p.ID.String(),
				Title:             strings.TrimSpace(p.Name.Default),
				Quantity:          p.Quantity.Value,
				UnitPrice:         p.Price.Value,
			})
		}
	}
	return ext
}

func (m zidMapper) currencyOf(raw, kind, id string) string {
	if c := strings.TrimSpace(raw); c != "" {
		return strings.ToUpper(c)
	}
	m.log.defaulted(kind, "currency", id, m.currency)
	return m.currency
}
