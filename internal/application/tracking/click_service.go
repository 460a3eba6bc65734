package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultClickTTL is the attribution window of a click
	DefaultClickTTL = 30 * 24 * time.Hour

	// TrackingParam carries the tracking id on the outbound URL
	TrackingParam = "souq_click"

	scopeClick = "click"
	scopeEvent = "event"
)

// ProductStore is the product access the tracking services need
type ProductStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	IncrementCounter(ctx context.Context, id uuid.UUID, counter catalog.Counter) error
}

// MerchantFinder loads the merchant owning a product
type MerchantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error)
}

// TrackingMetrics records clicks and engagement events
type TrackingMetrics interface {
	RecordTrackingEvent(ctx context.Context, eventType string, accepted bool)
}

// ClickServiceConfig holds click attribution settings
type ClickServiceConfig struct {
	ClickTTL    time.Duration
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	// StoreURLPathFormat builds a product page from (store url, external id).
	StoreURLPathFormat string
}

// ClickRequest is one outbound click
type ClickRequest struct {
	ProductID uuid.UUID
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ClickResult is returned to the caller, who redirects to TrackingURL
type ClickResult struct {
	TrackingID  string    `json:"tracking_id"`
	TrackingURL string    `json:"tracking_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Qualified   bool      `json:"-"`
}

// EventRequest is one engagement signal
type EventRequest struct {
	ProductID uuid.UUID
	EventType tracking.EventType
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ClickService records outbound clicks and engagement events
type ClickService struct {
	products  ProductStore
	merchants MerchantFinder
	clicks    tracking.ClickRepository
	trending  tracking.TrendingLogRepository
	filter    *EventFilter
	hasher    *IPHasher
	weights   tracking.Weights
	cfg       ClickServiceConfig
	metrics   TrackingMetrics
	now       func() time.Time
	logger    *zap.Logger
}

// NewClickService creates a new ClickService
func NewClickService(
	products ProductStore,
	merchants MerchantFinder,
	clicks tracking.ClickRepository,
	trending tracking.TrendingLogRepository,
	filter *EventFilter,
	hasher *IPHasher,
	weights tracking.Weights,
	cfg ClickServiceConfig,
	metrics TrackingMetrics,
	logger *zap.Logger,
) *ClickService {
	if cfg.ClickTTL <= 0 {
		cfg.ClickTTL = DefaultClickTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickService{
		products:  products,
		merchants: merchants,
		clicks:    clicks,
		trending:  trending,
		filter:    filter,
		hasher:    hasher,
		weights:   weights,
		cfg:       cfg,
		metrics:   metrics,
		now:       time.Now,
		logger:    logger,
	}
}

// TrackClick mints a tracking id for an outbound click and returns the
// destination URL carrying it. Every click is stored; only qualified clicks
// feed the trending log and the click counter.
func (s *ClickService) TrackClick(ctx context.Context, req ClickRequest) (*ClickResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "click",
		telemetry.WithAttribute(string(telemetry.AttrProductID), req.ProductID.String()),
	)
	defer span.End()

	result, err := s.trackClick(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, string(telemetry.AttrAccepted), result.Qualified)
	return result, nil
}

func (s *ClickService) trackClick(ctx context.Context, req ClickRequest) (*ClickResult, error) {
	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	destination, err := s.destination(ctx, product)
	if err != nil {
		return nil, err
	}

	trackingID := newTrackingID()
	trackingURL, err := s.decorate(destination, trackingID)
	if err != nil {
		s.logger.Warn("Product destination is not a valid URL",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
		return nil, catalog.ErrDestinationUnavailable
	}

	ipHash := s.hasher.Hash(req.ClientIP)
	verdict := s.filter.Evaluate(ctx, Signal{
		Scope:     scopeClick,
		ProductID: product.ID,
		IPHash:    ipHash,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
	})

	now := s.now()
	click := &tracking.ClickTracking{
		ID:               uuid.New(),
		TrackingID:       trackingID,
		ProductID:        product.ID,
		MerchantID:       product.MerchantID,
		DestinationURL:   trackingURL,
		Qualified:        verdict.Qualified,
		DisqualifyReason: verdict.Reason,
		IPHash:           ipHash,
		UserAgent:        req.UserAgent,
		Referrer:         req.Referrer,
		ExpiresAt:        now.Add(s.cfg.ClickTTL),
		CreatedAt:        now,
	}
	if err := s.clicks.Create(ctx, click); err != nil {
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	if verdict.Qualified {
		s.appendSignal(ctx, product.ID, tracking.EventClick, catalog.CounterClicks)
	}
	s.record(ctx, tracking.EventClick, verdict.Qualified)

	return &ClickResult{
		TrackingID:  trackingID,
		TrackingURL: trackingURL,
		ExpiresAt:   click.ExpiresAt,
		Qualified:   verdict.Qualified,
	}, nil
}

// TrackEvent records a VIEW or SAVE signal. Rejections are silent: the
// caller always answers with success. It reports whether the event was stored.
func (s *ClickService) TrackEvent(ctx context.Context, req EventRequest) bool {
	if !req.EventType.IsEngagement() {
		return false
	}

	verdict := s.filter.Evaluate(ctx, Signal{
		Scope:     scopeEvent,
		ProductID: req.ProductID,
		IPHash:    s.hasher.Hash(req.ClientIP),
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
	})
	if !verdict.Qualified {
		s.logger.Debug("Engagement event rejected",
			zap.String("product_id", req.ProductID.String()),
			zap.String("reason", string(verdict.Reason)),
		)
		s.record(ctx, req.EventType, false)
		return false
	}

	if _, err := s.products.FindByID(ctx, req.ProductID); err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			s.logger.Error("Failed to load product for event", zap.Error(err))
		}
		s.record(ctx, req.EventType, false)
		return false
	}

	counter := catalog.Counter("")
	if req.EventType == tracking.EventView {
		counter = catalog.CounterViews
	}
	if !s.appendSignal(ctx, req.ProductID, req.EventType, counter) {
		s.record(ctx, req.EventType, false)
		return false
	}
	s.record(ctx, req.EventType, true)
	return true
}

// appendSignal writes the trending log entry and then bumps the counter
func (s *ClickService) appendSignal(ctx context.Context, productID uuid.UUID, eventType tracking.EventType, counter catalog.Counter) bool {
	entry := tracking.NewTrendingLog(productID, eventType, s.weights)
	entry.CreatedAt = s.now()
	if err := s.trending.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append trending log",
			zap.String("product_id", productID.String()),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return false
	}
	if counter == "" {
		return true
	}
	if err := s.products.IncrementCounter(ctx, productID, counter); err != nil {
		s.logger.Warn("Failed to increment product counter",
			zap.String("product_id", productID.String()),
			zap.String("counter", string(counter)),
			zap.Error(err),
		)
	}
	return true
}

func (s *ClickService) destination(ctx context.Context, product *catalog.Product) (string, error) {
	var lookupErr error
	destination, err := product.Destination(func(externalID string) string {
		m, err := s.merchants.FindByID(ctx, product.MerchantID)
		if err != nil {
			lookupErr = err
			return ""
		}
		conn := m.Connection(product.Platform)
		if conn == nil || conn.StoreURL == "" || s.cfg.StoreURLPathFormat == "" {
			return ""
		}
		return fmt.Sprintf(s.cfg.StoreURLPathFormat, strings.TrimRight(conn.StoreURL, "/"), url.PathEscape(externalID))
	})
	if lookupErr != nil && !errors.Is(lookupErr, merchant.ErrMerchantNotFound) {
		return "", fmt.Errorf("failed to load merchant %s: %w", product.MerchantID, lookupErr)
	}
	return destination, err
}

// decorate appends the UTM parameters and the tracking id
func (s *ClickService) decorate(destination, trackingID string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	for key, value := range map[string]string{
		"utm_source":   s.cfg.UTMSource,
		"utm_medium":   s.cfg.UTMMedium,
		"utm_campaign": s.cfg.UTMCampaign,
	} {
		if value != "" {
			q.Set(key, value)
		}
	}
	q.Set(TrackingParam, trackingID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *ClickService) record(ctx context.Context, eventType tracking.EventType, accepted bool) {
	if s.metrics != nil {
		s.metrics.RecordTrackingEvent(ctx, string(eventType), accepted)
	}
}

// newTrackingID returns an opaque 32 character id
func newTrackingID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
