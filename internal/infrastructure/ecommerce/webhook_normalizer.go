package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// candidatePaths is an ordered list of JMESPath expressions; the first one
// that yields a non-empty scalar wins
type candidatePaths []*jmespath.JMESPath

func compilePaths(exprs ...string) candidatePaths {
	paths := make(candidatePaths, 0, len(exprs))
	for _, expr := range exprs {
		paths = append(paths, jmespath.MustCompile(expr))
	}
	return paths
}

// first returns the first non-empty scalar found under paths
func (c candidatePaths) first(doc any) string {
	for _, path := range c {
		v, err := path.Search(doc)
		if err != nil {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// object returns the first JSON object found under paths
func (c candidatePaths) object(doc any) map[string]any {
	for _, path := range c {
		v, err := path.Search(doc)
		if err != nil {
			continue
		}
		if m, ok := v.(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// payloadPaths holds the candidate paths of every normalized field
type payloadPaths struct {
	Event         candidatePaths
	StoreID       candidatePaths
	OrderID       candidatePaths
	Total         candidatePaths
	Currency      candidatePaths
	ReferrerCode  candidatePaths
	PaymentStatus candidatePaths
	OrderStatus   candidatePaths
	CreatedAt     candidatePaths
	Data          candidatePaths
}

var sallaPayloadPaths = payloadPaths{
	Event:         compilePaths("event"),
	StoreID:       compilePaths("merchant.id", "merchant", "data.store.id"),
	OrderID:       compilePaths("data.id", "data.order_id"),
	Total:         compilePaths("data.amounts.total.amount", "data.total.amount", "data.total"),
	Currency:      compilePaths("data.amounts.total.currency", "data.total.currency", "data.currency"),
	ReferrerCode:  compilePaths("data.referral_code", "data.tracking.referrer_code", "data.source_details.value"),
	PaymentStatus: compilePaths("data.payment_status", "data.payment.status"),
	OrderStatus:   compilePaths("data.status.slug", "data.status.customized.slug", "data.status"),
	CreatedAt:     compilePaths("created_at", "data.date.date", "data.created_at"),
	Data:          compilePaths("data"),
}

var zidPayloadPaths = payloadPaths{
	Event:         compilePaths("event", "event_type", "type"),
	StoreID:       compilePaths("store_id", "store.id", "data.store_id", "payload.store_id"),
	OrderID:       compilePaths("data.id", "payload.id", "id"),
	Total:         compilePaths("data.order_total", "payload.order_total", "order_total"),
	Currency:      compilePaths("data.currency_code", "payload.currency_code", "currency_code"),
	ReferrerCode:  compilePaths("data.referral_code", "payload.referral_code", "referral_code"),
	PaymentStatus: compilePaths("data.payment_status", "payload.payment_status", "payment_status"),
	OrderStatus:   compilePaths("data.order_status.code", "payload.order_status.code", "order_status.code", "data.order_status", "order_status"),
	CreatedAt:     compilePaths("data.created_at", "payload.created_at", "created_at"),
	Data:          compilePaths("data", "payload", "@"),
}

var sallaEventKinds = map[string]integration.WebhookEventKind{
	"order.created":        integration.WebhookOrderCreated,
	"order.updated":        integration.WebhookOrderUpdated,
	"order.status.updated": integration.WebhookOrderUpdated,
	"product.created":      integration.WebhookProductCreated,
	"product.updated":      integration.WebhookProductUpdated,
}

var zidEventKinds = map[string]integration.WebhookEventKind{
	"order.create":        integration.WebhookOrderCreated,
	"order.created":       integration.WebhookOrderCreated,
	"order.update":        integration.WebhookOrderUpdated,
	"order.updated":       integration.WebhookOrderUpdated,
	"order.status.update": integration.WebhookOrderUpdated,
	"product.create":      integration.WebhookProductCreated,
	"product.created":     integration.WebhookProductCreated,
	"product.update":      integration.WebhookProductUpdated,
	"product.updated":     integration.WebhookProductUpdated,
}

// PayloadNormalizer turns a platform webhook body into an integration.NormalizedEvent
// by probing a fixed, ordered list of candidate field paths
type PayloadNormalizer struct {
	platform      integration.PlatformCode
	paths         payloadPaths
	kinds         map[string]integration.WebhookEventKind
	decodeOrder   func(data []byte) (*integration.ExternalOrder, error)
	decodeProduct func(data []byte) (*integration.ExternalProduct, error)
	loc           *time.Location
	logger        *zap.Logger
}

var _ integration.WebhookNormalizer = (*PayloadNormalizer)(nil)

// WebhookNormalizer returns the Salla payload normalizer
func (a *SallaAdapter) WebhookNormalizer() *PayloadNormalizer {
	m := a.mapper
	return &PayloadNormalizer{
		platform: integration.PlatformSalla,
		paths:    sallaPayloadPaths,
		kinds:    sallaEventKinds,
		decodeOrder: func(data []byte) (*integration.ExternalOrder, error) {
			var o SallaOrder
			if err := json.Unmarshal(data, &o); err != nil {
				return nil, err
			}
			ext := m.order(&o)
			return &ext, nil
		},
		decodeProduct: func(data []byte) (*integration.ExternalProduct, error) {
			var p SallaProduct
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, err
			}
			ext := m.product(&p)
			ext.IsActive = webhookActive(p.IsListed())
			return &ext, nil
		},
		loc:    m.loc,
		logger: a.logger,
	}
}

// WebhookNormalizer returns the Zid payload normalizer
func (a *ZidAdapter) WebhookNormalizer() *PayloadNormalizer {
	m := a.mapper
	return &PayloadNormalizer{
		platform: integration.PlatformZid,
		paths:    zidPayloadPaths,
		kinds:    zidEventKinds,
		decodeOrder: func(data []byte) (*integration.ExternalOrder, error) {
			var o ZidOrder
			if err := json.Unmarshal(data, &o); err != nil {
				return nil, err
			}
			ext := m.order(&o)
			return &ext, nil
		},
		decodeProduct: func(data []byte) (*integration.ExternalProduct, error) {
			var p ZidProduct
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, err
			}
			ext := m.product(&p)
			ext.IsActive = webhookActive(!p.IsPublished.Set || p.IsPublished.Value)
			return &ext, nil
		},
		loc:    m.loc,
		logger: a.logger,
	}
}

// webhookActive is the active rule for product webhooks: the platform listing
// flag alone. Catalog sync also requires stock (integration.DeriveActive), so a
// listed product with zero stock is active after a webhook and inactive after
// the next sync. Both rules are kept until the intended precedence is settled.
func webhookActive(listed bool) bool {
	return listed
}

// Platform returns the platform code
func (n *PayloadNormalizer) Platform() integration.PlatformCode {
	return n.platform
}

// Normalize parses body. Missing correlation fields return integration.ErrMalformedPayload.
func (n *PayloadNormalizer) Normalize(body []byte) (*integration.NormalizedEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrMalformedPayload, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: body is not a JSON object", integration.ErrMalformedPayload)
	}

	raw := n.paths.Event.first(doc)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing event name", integration.ErrMalformedPayload)
	}
	kind, ok := n.kinds[strings.ToLower(raw)]
	if !ok {
		kind = integration.WebhookUnsupported
	}

	event := &integration.NormalizedEvent{
		Event:         kind,
		RawEvent:      raw,
		StoreID:       n.paths.StoreID.first(doc),
		Platform:      n.platform,
		Currency:      strings.ToUpper(n.paths.Currency.first(doc)),
		ReferrerCode:  n.paths.ReferrerCode.first(doc),
		PaymentStatus: n.paths.PaymentStatus.first(doc),
		OrderStatus:   n.paths.OrderStatus.first(doc),
		CreatedAt:     parsePlatformTime(n.paths.CreatedAt.first(doc), n.loc),
	}
	if event.StoreID == "" {
		return nil, fmt.Errorf("%w: %s event %q has no store id", integration.ErrMalformedPayload, n.platform, raw)
	}
	if kind == integration.WebhookUnsupported {
		return event, nil
	}

	data := n.paths.Data.object(doc)
	if data == nil {
		return nil, fmt.Errorf("%w: %s event %q has no data object", integration.ErrMalformedPayload, n.platform, raw)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrMalformedPayload, err)
	}

	switch {
	case kind.IsOrderEvent():
		if err := n.normalizeOrder(event, doc, encoded); err != nil {
			return nil, err
		}
	case kind.IsProductEvent():
		product, err := n.decodeProduct(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: product: %v", integration.ErrMalformedPayload, err)
		}
		if product.ExternalID == "" {
			return nil, fmt.Errorf("%w: %s event %q has no product id", integration.ErrMalformedPayload, n.platform, raw)
		}
		event.Product = product
	}
	return event, nil
}

func (n *PayloadNormalizer) normalizeOrder(event *integration.NormalizedEvent, doc any, encoded []byte) error {
	event.OrderID = n.paths.OrderID.first(doc)
	if event.OrderID == "" {
		return fmt.Errorf("%w: %s event %q has no order id", integration.ErrMalformedPayload, n.platform, event.RawEvent)
	}

	if total := n.paths.Total.first(doc); total != "" {
		amount, err := decimal.NewFromString(total)
		if err != nil {
			n.logger.Warn("Webhook total is not numeric",
				zap.String("platform", n.platform.String()),
				zap.String("order_id", event.OrderID),
				zap.String("total", total),
			)
		}
		event.Total = amount
	}

	order, err := n.decodeOrder(encoded)
	if err != nil {
		return fmt.Errorf("%w: order: %v", integration.ErrMalformedPayload, err)
	}
	// Probed fields win over what the detail decoder found
	order.ExternalID = event.OrderID
	if event.OrderStatus != "" {
		order.StatusRaw = event.OrderStatus
	}
	if event.PaymentStatus != "" {
		order.PaymentStatusRaw = event.PaymentStatus
	}
	if event.ReferrerCode != "" {
		order.ReferrerCode = event.ReferrerCode
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = event.CreatedAt
	}
	if event.Currency == "" {
		event.Currency = order.Currency
	}
	if event.Total.IsZero() {
		event.Total = order.TotalAmount
	}
	event.Order = order
	return nil
}
