package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/order"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Webhook outcome labels
const (
	WebhookOutcomeProcessed = telemetry.OutcomeSuccess
	WebhookOutcomeFailed    = telemetry.OutcomeFailed
	WebhookOutcomeRejected  = telemetry.OutcomeRejected
	WebhookOutcomeDuplicate = telemetry.OutcomeDuplicate
	WebhookOutcomeIgnored   = telemetry.OutcomeIgnored
)

// WebhookMetrics records inbound webhooks
type WebhookMetrics interface {
	RecordWebhook(ctx context.Context, platform, outcome string)
}

// WebhookRequest is one inbound delivery
type WebhookRequest struct {
	Platform integration.PlatformCode
	Body     []byte
	// Header looks up a request header by name.
	Header func(name string) string
}

// WebhookResult is acknowledged to the sender with a 200
type WebhookResult struct {
	Accepted  bool
	Duplicate bool
	// Ignored is set for payloads that were acknowledged without processing.
	Ignored bool
}

// WebhookServiceConfig holds the ingestion settings
type WebhookServiceConfig struct {
	AllowUnsigned bool
	Production    bool
}

// WebhookService ingests platform webhooks: verify, normalize, record in the
// idempotency ledger, then dispatch, in that order.
type WebhookService struct {
	endpoints     integration.WebhookEndpoints
	ledger        integration.WebhookEventRepository
	merchants     merchant.Repository
	orders        *OrderRecorder
	catalog       *CatalogReconciler
	publisher     shared.EventPublisher
	allowUnsigned bool
	metrics       WebhookMetrics
	logger        *zap.Logger
}

// NewWebhookService creates a new WebhookService. The unsigned override is
// dropped in production.
func NewWebhookService(
	endpoints integration.WebhookEndpoints,
	ledger integration.WebhookEventRepository,
	merchants merchant.Repository,
	orders *OrderRecorder,
	catalogReconciler *CatalogReconciler,
	publisher shared.EventPublisher,
	cfg WebhookServiceConfig,
	metrics WebhookMetrics,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowUnsigned := cfg.AllowUnsigned && !cfg.Production
	if cfg.AllowUnsigned && cfg.Production {
		logger.Warn("Ignoring webhook.allow_unsigned in production")
	}
	return &WebhookService{
		endpoints:     endpoints,
		ledger:        ledger,
		merchants:     merchants,
		orders:        orders,
		catalog:       catalogReconciler,
		publisher:     publisher,
		allowUnsigned: allowUnsigned,
		metrics:       metrics,
		logger:        logger,
	}
}

// Ingest processes one delivery.
//
// Errors are returned only for a bad signature (integration.ErrSignatureInvalid
// or ErrSignatureMissing), missing platform configuration and ledger storage
// failures. Everything after the ledger insert is acknowledged.
func (s *WebhookService) Ingest(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "ingest",
		telemetry.WithAttribute(string(telemetry.AttrPlatform), req.Platform),
	)
	defer span.End()

	result, err := s.ingest(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "duplicate", result.Duplicate, "ignored", result.Ignored)
	return result, nil
}

func (s *WebhookService) ingest(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	endpoint, err := s.endpoints.Endpoint(req.Platform)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("platform", req.Platform.String()))
	if req.Header == nil {
		req.Header = func(string) string { return "" }
	}

	if err := s.verify(endpoint, req); err != nil {
		s.record(ctx, req.Platform, WebhookOutcomeRejected)
		log.Warn("Webhook signature rejected", zap.Error(err))
		return nil, err
	}

	event, err := endpoint.Normalizer.Normalize(req.Body)
	if err != nil {
		if errors.Is(err, integration.ErrMalformedPayload) {
			s.record(ctx, req.Platform, WebhookOutcomeIgnored)
			log.Warn("Acknowledging malformed webhook payload", zap.Error(err))
			return &WebhookResult{Accepted: true, Ignored: true}, nil
		}
		return nil, err
	}
	event.IdempotencyKey = IdempotencyKey(req.Header(endpoint.DeliveryIDHeader), req.Body)
	log = log.With(
		zap.String("store_id", event.StoreID),
		zap.String("event", event.RawEvent),
		zap.String("idempotency_key", event.IdempotencyKey),
	)

	entry := integration.NewWebhookEvent(req.Platform, event.StoreID, event.IdempotencyKey, event.RawEvent, RedactPayload(req.Body))
	if err := s.ledger.Insert(ctx, entry); err != nil {
		if errors.Is(err, integration.ErrDuplicateEvent) {
			s.record(ctx, req.Platform, WebhookOutcomeDuplicate)
			log.Info("Duplicate webhook delivery")
			return &WebhookResult{Accepted: true, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("failed to record webhook: %w", err)
	}

	if err := s.dispatch(ctx, event); err != nil {
		s.record(ctx, req.Platform, WebhookOutcomeFailed)
		log.Warn("Webhook handler failed", zap.Error(err))
		if markErr := s.ledger.MarkFailed(context.WithoutCancel(ctx), entry.ID, err.Error()); markErr != nil {
			log.Error("Failed to mark webhook failed", zap.Error(markErr))
		}
		return &WebhookResult{Accepted: true}, nil
	}

	if err := s.ledger.MarkProcessed(context.WithoutCancel(ctx), entry.ID); err != nil {
		log.Error("Failed to mark webhook processed", zap.Error(err))
	}
	s.record(ctx, req.Platform, WebhookOutcomeProcessed)
	return &WebhookResult{Accepted: true}, nil
}

func (s *WebhookService) verify(endpoint *integration.WebhookEndpoint, req WebhookRequest) error {
	err := endpoint.Verifier.Verify(req.Body, req.Header(endpoint.Verifier.Header()))
	if err == nil {
		return nil
	}
	if s.allowUnsigned && (errors.Is(err, integration.ErrSignatureMissing) || errors.Is(err, integration.ErrWebhookNotEnabled)) {
		s.logger.Warn("Accepting unsigned webhook", zap.String("platform", req.Platform.String()))
		return nil
	}
	return err
}

// dispatch runs the business handler for the event kind
func (s *WebhookService) dispatch(ctx context.Context, event *integration.NormalizedEvent) error {
	switch {
	case event.Event.IsOrderEvent():
		return s.handleOrder(ctx, event)
	case event.Event.IsProductEvent():
		return s.handleProduct(ctx, event)
	default:
		s.logger.Debug("Ignoring unsupported webhook event",
			zap.String("platform", event.Platform.String()),
			zap.String("event", event.RawEvent),
		)
		return nil
	}
}

func (s *WebhookService) merchantFor(ctx context.Context, event *integration.NormalizedEvent) (*merchant.Merchant, error) {
	m, err := s.merchants.FindByStore(ctx, event.Platform, event.StoreID)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", event.StoreID, err)
	}
	return m, nil
}

func (s *WebhookService) handleOrder(ctx context.Context, event *integration.NormalizedEvent) error {
	m, err := s.merchantFor(ctx, event)
	if err != nil {
		return err
	}
	recorded, err := s.orders.Record(ctx, m.ID, event.Platform, event.Order)
	if err != nil {
		return err
	}

	// A cancelled or refunded order keeps its earlier paid payment status, so
	// cancellation is checked first.
	o := recorded.Order
	switch {
	case order.IsOrderCancelled(o.PaymentStatus, o.StatusRaw):
		s.publish(ctx, order.NewOrderStatusEvent(order.EventTypeOrderCancelled, o))
	case order.IsPaymentConfirmed(o.PaymentStatus, o.StatusRaw):
		s.publish(ctx, order.NewOrderStatusEvent(order.EventTypeOrderPaid, o))
	}

	s.logger.Info("Webhook order stored",
		zap.String("merchant_id", m.ID.String()),
		zap.String("external_order_id", o.ExternalOrderID),
		zap.String("status", string(o.Status)),
		zap.Bool("created", recorded.Created),
		zap.Bool("matched", recorded.Matched()),
	)
	return nil
}

func (s *WebhookService) handleProduct(ctx context.Context, event *integration.NormalizedEvent) error {
	m, err := s.merchantFor(ctx, event)
	if err != nil {
		return err
	}
	summary, err := s.catalog.UpsertProduct(ctx, m.ID, event.Platform, event.Product)
	if err != nil {
		return err
	}
	s.logger.Info("Webhook product stored",
		zap.String("merchant_id", m.ID.String()),
		zap.String("external_id", event.Product.ExternalID),
		zap.Bool("created", summary.ProductsCreated > 0),
		zap.Bool("updated", summary.ProductsUpdated > 0),
	)
	return nil
}

func (s *WebhookService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

func (s *WebhookService) record(ctx context.Context, platform integration.PlatformCode, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordWebhook(ctx, platform.String(), outcome)
	}
}

// IdempotencyKey prefers the delivery id header and falls back to the
// SHA-256 of the raw body
func IdempotencyKey(deliveryID string, body []byte) string {
	if id := strings.TrimSpace(deliveryID); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
