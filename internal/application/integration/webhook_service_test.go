package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testSignatureHeader = "X-Test-Signature"
	testDeliveryHeader  = "X-Delivery-Id"
)

// tokenVerifier accepts the literal signature "valid"
type tokenVerifier struct {
	configured bool
}

func (v tokenVerifier) Header() string { return testSignatureHeader }

func (v tokenVerifier) Verify(_ []byte, provided string) error {
	switch {
	case !v.configured:
		return integration.ErrWebhookNotEnabled
	case provided == "":
		return integration.ErrSignatureMissing
	case provided != "valid":
		return integration.ErrSignatureInvalid
	}
	return nil
}

// testPayload is a simplified webhook body
type testPayload struct {
	Event    string `json:"event"`
	StoreID  string `json:"store_id"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Payment  string `json:"payment_status,omitempty"`
	Total    string `json:"total,omitempty"`
	Product  string `json:"product_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
	Customer *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer,omitempty"`
}

type testNormalizer struct{}

func (testNormalizer) Platform() integration.PlatformCode { return integration.PlatformSalla }

func (testNormalizer) Normalize(body []byte) (*integration.NormalizedEvent, error) {
	var p testPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrMalformedPayload, err)
	}
	if p.StoreID == "" {
		return nil, fmt.Errorf("%w: no store id", integration.ErrMalformedPayload)
	}
	event := &integration.NormalizedEvent{
		RawEvent:      p.Event,
		StoreID:       p.StoreID,
		Platform:      integration.PlatformSalla,
		OrderID:       p.OrderID,
		PaymentStatus: p.Payment,
		OrderStatus:   p.Status,
		Currency:      "SAR",
	}
	switch p.Event {
	case "order.created", "order.updated":
		event.Event = integration.WebhookEventKind(p.Event)
		total, _ := decimal.NewFromString(p.Total)
		event.Total = total
		event.Order = &integration.ExternalOrder{
			ExternalID:       p.OrderID,
			TotalAmount:      total,
			Currency:         "SAR",
			StatusRaw:        p.Status,
			PaymentStatusRaw: p.Payment,
			LineItems:        []integration.ExternalLineItem{{ProductExternalID: p.Product, Title: p.Title}},
		}
	case "product.created", "product.updated":
		event.Event = integration.WebhookEventKind(p.Event)
		ext := extProduct(p.Product, p.Title, p.Quantity)
		event.Product = &ext
	default:
		event.Event = integration.WebhookUnsupported
	}
	return event, nil
}

type testEndpoints map[integration.PlatformCode]*integration.WebhookEndpoint

func (e testEndpoints) Endpoint(code integration.PlatformCode) (*integration.WebhookEndpoint, error) {
	if ep, ok := e[code]; ok {
		return ep, nil
	}
	return nil, integration.ErrPlatformNotConfigured
}

type webhookFixture struct {
	merchant  *merchant.Merchant
	ledger    *memLedger
	orders    *memOrders
	products  *memProducts
	trending  *memTrending
	publisher *recordingPublisher
	endpoints testEndpoints
	service   *WebhookService
}

func newWebhookFixture(t *testing.T, cfg WebhookServiceConfig) *webhookFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &webhookFixture{
		merchant:  connectedMerchant(integration.PlatformSalla, "store-1"),
		ledger:    newMemLedger(),
		orders:    newMemOrders(),
		products:  newMemProducts(),
		trending:  &memTrending{},
		publisher: &recordingPublisher{},
		endpoints: testEndpoints{
			integration.PlatformSalla: {
				Verifier:         tokenVerifier{configured: true},
				Normalizer:       testNormalizer{},
				DeliveryIDHeader: testDeliveryHeader,
			},
		},
	}
	recorder := NewOrderRecorder(f.products, f.orders, f.trending, tracking.DefaultWeights(), logger)
	reconciler := NewCatalogReconciler(f.products, newMemCategories(), f.publisher, CatalogReconcilerConfig{}, logger)
	f.service = NewWebhookService(f.endpoints, f.ledger, newMemMerchants(f.merchant), recorder, reconciler, f.publisher, cfg, nil, logger)
	return f
}

func headers(kv ...string) func(string) string {
	m := make(map[string]string)
	for i := 0; i+1 < len(kv); i += 2 {
		m[strings.ToLower(kv[i])] = kv[i+1]
	}
	return func(name string) string { return m[strings.ToLower(name)] }
}

func body(t *testing.T, p testPayload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func paidOrder() testPayload {
	return testPayload{
		Event:   "order.created",
		StoreID: "store-1",
		OrderID: "98765",
		Status:  "completed",
		Payment: "paid",
		Total:   "499.50",
		Product: "1001",
		Customer: &struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}{Name: "Sara", Email: "sara@example.com"},
	}
}

func TestWebhookService_DuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	raw := body(t, paidOrder())
	req := WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     raw,
		Header:   headers(testSignatureHeader, "valid", testDeliveryHeader, "dlv-1"),
	}

	first, err := f.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &WebhookResult{Accepted: true}, first)

	second, err := f.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &WebhookResult{Accepted: true, Duplicate: true}, second)

	assert.Equal(t, 1, f.orders.count())
	entries := f.ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "dlv-1", entries[0].IdempotencyKey)
	assert.Equal(t, integration.WebhookStatusProcessed, entries[0].Status)
	assert.Equal(t, []string{order.EventTypeOrderPaid}, f.publisher.types())
}

func TestWebhookService_BodyHashKey(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	raw := body(t, paidOrder())
	req := WebhookRequest{Platform: integration.PlatformSalla, Body: raw, Header: headers(testSignatureHeader, "valid")}

	_, err := f.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	result, err := f.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)

	entries := f.ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, IdempotencyKey("", raw), entries[0].IdempotencyKey)
	assert.True(t, strings.HasPrefix(entries[0].IdempotencyKey, "sha256:"))
}

func TestWebhookService_ConcurrentDuplicates(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	req := WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, paidOrder()),
		Header:   headers(testSignatureHeader, "valid", testDeliveryHeader, "dlv-7"),
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.service.Ingest(context.Background(), req)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Duplicate {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, duplicates)
	assert.Len(t, f.ledger.all(), 1)
	assert.Equal(t, 1, f.orders.count())
}

func TestWebhookService_Signature(t *testing.T) {
	raw := body(t, paidOrder())

	tests := []struct {
		name      string
		cfg       WebhookServiceConfig
		header    string
		configure bool
		wantErr   error
	}{
		{"invalid", WebhookServiceConfig{}, "forged", true, integration.ErrSignatureInvalid},
		{"missing", WebhookServiceConfig{}, "", true, integration.ErrSignatureMissing},
		{"missing secret", WebhookServiceConfig{}, "valid", false, integration.ErrWebhookNotEnabled},
		{"unsigned allowed outside production", WebhookServiceConfig{AllowUnsigned: true}, "", true, nil},
		{"unsigned override ignored in production", WebhookServiceConfig{AllowUnsigned: true, Production: true}, "", true, integration.ErrSignatureMissing},
		{"override never accepts a bad signature", WebhookServiceConfig{AllowUnsigned: true}, "forged", true, integration.ErrSignatureInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, tt.cfg)
			f.endpoints[integration.PlatformSalla].Verifier = tokenVerifier{configured: tt.configure}

			result, err := f.service.Ingest(context.Background(), WebhookRequest{
				Platform: integration.PlatformSalla,
				Body:     raw,
				Header:   headers(testSignatureHeader, tt.header),
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.ledger.all(), "rejected before the ledger")
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Accepted)
		})
	}
}

func TestWebhookService_UnknownPlatform(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	_, err := f.service.Ingest(context.Background(), WebhookRequest{Platform: integration.PlatformZid, Body: []byte("{}")})
	assert.ErrorIs(t, err, integration.ErrPlatformNotConfigured)
}

func TestWebhookService_MalformedPayloadIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})

	result, err := f.service.Ingest(context.Background(), WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     []byte(`{"event":"order.created"}`),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.Ignored)
	assert.Empty(t, f.ledger.all())
}

func TestWebhookService_HandlerFailureMarksLedger(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	p := paidOrder()
	p.StoreID = "unknown-store"

	result, err := f.service.Ingest(context.Background(), WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, p),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)
	assert.Equal(t, &WebhookResult{Accepted: true}, result)

	entries := f.ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, integration.WebhookStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].ErrorMessage, "unknown-store")
	assert.Zero(t, f.orders.count())
}

func TestWebhookService_LedgerPayloadIsRedacted(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})

	_, err := f.service.Ingest(context.Background(), WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, paidOrder()),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)

	entries := f.ledger.all()
	require.Len(t, entries, 1)
	stored := string(entries[0].Payload)
	assert.NotContains(t, stored, "sara@example.com")
	assert.NotContains(t, stored, "Sara")
	assert.Contains(t, stored, redactedValue)
	assert.Contains(t, stored, "98765")
}

func TestWebhookService_OrderEvents(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	ctx := context.Background()
	send := func(p testPayload, delivery string) {
		t.Helper()
		_, err := f.service.Ingest(ctx, WebhookRequest{
			Platform: integration.PlatformSalla,
			Body:     body(t, p),
			Header:   headers(testSignatureHeader, "valid", testDeliveryHeader, delivery),
		})
		require.NoError(t, err)
	}

	product := &catalog.Product{BaseEntity: shared.NewBaseEntity(), MerchantID: f.merchant.ID, Platform: integration.PlatformSalla, ExternalID: "1001", Slug: "oud", Title: "Royal Oud"}
	require.NoError(t, f.products.Create(ctx, product))

	pending := paidOrder()
	pending.Payment = "pending"
	pending.Status = "payment_pending"
	send(pending, "d-1")
	assert.Empty(t, f.publisher.types())

	stored, err := f.orders.FindByExternalID(ctx, "98765")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, stored.Status)
	require.NotNil(t, stored.ProductID)
	assert.Equal(t, 1, f.trending.len())
	assert.Equal(t, 1, f.products.counter(product.ID, catalog.CounterOrders))

	cancelled := paidOrder()
	cancelled.Event = "order.updated"
	cancelled.Payment = "refunded"
	cancelled.Status = "canceled"
	send(cancelled, "d-2")
	assert.Equal(t, []string{order.EventTypeOrderCancelled}, f.publisher.types())

	stored, err = f.orders.FindByExternalID(ctx, "98765")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, stored.Status)
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, 1, f.trending.len(), "updates never add order signals")
}

func TestWebhookService_StatusOnlyUpdateKeepsOrderTotals(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	ctx := context.Background()

	for i, p := range []testPayload{
		paidOrder(),
		{Event: "order.updated", StoreID: "store-1", OrderID: "98765", Status: "delivering"},
	} {
		_, err := f.service.Ingest(ctx, WebhookRequest{
			Platform: integration.PlatformSalla,
			Body:     body(t, p),
			Header:   headers(testSignatureHeader, "valid", testDeliveryHeader, fmt.Sprintf("d-%d", i)),
		})
		require.NoError(t, err)
	}

	stored, err := f.orders.FindByExternalID(ctx, "98765")
	require.NoError(t, err)
	assert.Equal(t, "delivering", stored.StatusRaw)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("499.50")))
	assert.Equal(t, "paid", stored.PaymentStatus)
	assert.Equal(t, 1, f.orders.count())
}

func TestWebhookService_CancellationWinsOverPayment(t *testing.T) {
	tests := []struct {
		name    string
		payment string
		status  string
		want    string
	}{
		{"paid then cancelled", "paid", "canceled", order.EventTypeOrderCancelled},
		{"delivered then refunded", "refunded", "delivered", order.EventTypeOrderCancelled},
		{"paid and completed", "paid", "completed", order.EventTypeOrderPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, WebhookServiceConfig{})
			p := paidOrder()
			p.Payment = tt.payment
			p.Status = tt.status

			_, err := f.service.Ingest(context.Background(), WebhookRequest{
				Platform: integration.PlatformSalla,
				Body:     body(t, p),
				Header:   headers(testSignatureHeader, "valid"),
			})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, f.publisher.types())
		})
	}
}

func TestWebhookService_ProductEvents(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})
	ctx := context.Background()

	created := testPayload{Event: "product.created", StoreID: "store-1", Product: "2001", Title: "Saffron Oil", Quantity: intPtr(2)}
	_, err := f.service.Ingest(ctx, WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, created),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)

	stored, err := f.products.FindByExternalID(ctx, f.merchant.ID, integration.PlatformSalla, "2001")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	slug := stored.Slug

	soldOut := created
	soldOut.Event = "product.updated"
	soldOut.Quantity = intPtr(0)
	_, err = f.service.Ingest(ctx, WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, soldOut),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)

	stored, err = f.products.FindByExternalID(ctx, f.merchant.ID, integration.PlatformSalla, "2001")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.InStock)
	assert.Equal(t, slug, stored.Slug)
	assert.Equal(t, []string{catalog.EventTypeProductOutOfStock}, f.publisher.types())
}

func TestWebhookService_UnsupportedEventIsProcessed(t *testing.T) {
	f := newWebhookFixture(t, WebhookServiceConfig{})

	result, err := f.service.Ingest(context.Background(), WebhookRequest{
		Platform: integration.PlatformSalla,
		Body:     body(t, testPayload{Event: "app.installed", StoreID: "store-1"}),
		Header:   headers(testSignatureHeader, "valid"),
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	entries := f.ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, integration.WebhookStatusProcessed, entries[0].Status)
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "dlv-1", IdempotencyKey("  dlv-1 ", []byte("x")))
	assert.Equal(t, IdempotencyKey("", []byte("x")), IdempotencyKey(" ", []byte("x")))
	assert.NotEqual(t, IdempotencyKey("", []byte("x")), IdempotencyKey("", []byte("y")))
}
