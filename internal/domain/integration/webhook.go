package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WebhookEventKind is the normalized event name
type WebhookEventKind string

const (
	WebhookOrderCreated   WebhookEventKind = "order.created"
	WebhookOrderUpdated   WebhookEventKind = "order.updated"
	WebhookProductCreated WebhookEventKind = "product.created"
	WebhookProductUpdated WebhookEventKind = "product.updated"
	WebhookUnsupported    WebhookEventKind = "unsupported"
)

// IsOrderEvent reports whether the kind carries an order
func (k WebhookEventKind) IsOrderEvent() bool {
	return k == WebhookOrderCreated || k == WebhookOrderUpdated
}

// IsProductEvent reports whether the kind carries a product
func (k WebhookEventKind) IsProductEvent() bool {
	return k == WebhookProductCreated || k == WebhookProductUpdated
}

// NormalizedEvent is one webhook delivery reduced to a single stable shape
type NormalizedEvent struct {
	Event          WebhookEventKind
	RawEvent       string
	OrderID        string
	StoreID        string
	Platform       PlatformCode
	Total          decimal.Decimal
	Currency       string
	ReferrerCode   string
	PaymentStatus  string
	OrderStatus    string
	CreatedAt      time.Time
	IdempotencyKey string

	// Order is populated for order events, Product for product events.
	Order   *ExternalOrder
	Product *ExternalProduct
}

// WebhookNormalizer turns a verified raw body into a NormalizedEvent.
// The idempotency key is filled in by the ingestor, not the normalizer.
type WebhookNormalizer interface {
	Platform() PlatformCode
	Normalize(body []byte) (*NormalizedEvent, error)
}

// SignatureVerifier checks the signature header of a webhook delivery.
// Verify returns ErrSignatureMissing, ErrSignatureInvalid or ErrWebhookNotEnabled.
type SignatureVerifier interface {
	Header() string
	Verify(body []byte, provided string) error
}

// WebhookEndpoint bundles the per-platform webhook settings
type WebhookEndpoint struct {
	Verifier         SignatureVerifier
	Normalizer       WebhookNormalizer
	DeliveryIDHeader string
}

// WebhookEndpoints resolves webhook settings by platform
type WebhookEndpoints interface {
	Endpoint(code PlatformCode) (*WebhookEndpoint, error)
}

// ---------------------------------------------------------------------------
// Idempotency ledger
// ---------------------------------------------------------------------------

// WebhookStatus is the processing state of a ledger row
type WebhookStatus string

const (
	WebhookStatusReceived  WebhookStatus = "received"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookEvent is the idempotency ledger row for one delivery.
// (Platform, StoreID, IdempotencyKey) is unique.
type WebhookEvent struct {
	ID             uuid.UUID
	Platform       PlatformCode
	StoreID        string
	IdempotencyKey string
	EventType      string
	Status         WebhookStatus
	ErrorMessage   string
	Payload        []byte
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}

// NewWebhookEvent creates a ledger row in the received state
func NewWebhookEvent(platform PlatformCode, storeID, key, eventType string, payload []byte) *WebhookEvent {
	return &WebhookEvent{
		ID:             uuid.New(),
		Platform:       platform,
		StoreID:        storeID,
		IdempotencyKey: key,
		EventType:      eventType,
		Status:         WebhookStatusReceived,
		Payload:        payload,
		ReceivedAt:     time.Now(),
	}
}

// WebhookEventRepository persists the ledger
type WebhookEventRepository interface {
	// Insert atomically records the event. A uniqueness violation on
	// (platform, store_id, idempotency_key) returns ErrDuplicateEvent.
	Insert(ctx context.Context, event *WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	FindByKey(ctx context.Context, platform PlatformCode, storeID, key string) (*WebhookEvent, error)
}
