package tracking

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type clickFixture struct {
	product  *catalog.Product
	products *memProducts
	clicks   *memClicks
	trending *memTrending
	limiter  *countingLimiter
	metrics  *recordingMetrics
	service  *ClickService
	now      time.Time
}

func newClickFixture(t *testing.T) *clickFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	m := &merchant.Merchant{BaseEntity: shared.NewBaseEntity(), Name: "Oud House"}
	m.Connections = []merchant.PlatformConnection{{
		MerchantID: m.ID,
		Platform:   integration.PlatformSalla,
		StoreID:    "store-1",
		StoreURL:   "https://oud-house.example.com/",
	}}
	product := &catalog.Product{
		BaseEntity: shared.NewBaseEntity(),
		MerchantID: m.ID,
		Platform:   integration.PlatformSalla,
		ExternalID: "1001",
		Slug:       "royal-oud",
		Title:      "Royal Oud",
		IsActive:   true,
		InStock:    true,
	}

	f := &clickFixture{
		product:  product,
		products: newMemProducts(product),
		clicks:   &memClicks{},
		trending: &memTrending{},
		limiter:  newCountingLimiter(),
		metrics:  newRecordingMetrics(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	filter, err := NewEventFilter(testFilterConfig(), f.limiter, logger)
	require.NoError(t, err)
	hasher, err := NewIPHasher("pepper")
	require.NoError(t, err)

	f.service = NewClickService(
		f.products,
		memMerchants{m.ID: m},
		f.clicks,
		f.trending,
		filter,
		hasher,
		tracking.DefaultWeights(),
		ClickServiceConfig{
			ClickTTL:           24 * time.Hour,
			UTMSource:          "souq",
			UTMMedium:          "marketplace",
			UTMCampaign:        "product_click",
			StoreURLPathFormat: "%s/p/%s",
		},
		f.metrics,
		logger,
	)
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *clickFixture) click(t *testing.T) *ClickResult {
	t.Helper()
	result, err := f.service.TrackClick(context.Background(), ClickRequest{
		ProductID: f.product.ID,
		ClientIP:  "203.0.113.7",
		UserAgent: browserUA,
		Referrer:  baseURL + "/products/royal-oud",
	})
	require.NoError(t, err)
	return result
}

func TestClickService_TrackClick(t *testing.T) {
	f := newClickFixture(t)

	result := f.click(t)
	assert.Len(t, result.TrackingID, 32)
	assert.True(t, result.Qualified)
	assert.Equal(t, f.now.Add(24*time.Hour), result.ExpiresAt)

	u, err := url.Parse(result.TrackingURL)
	require.NoError(t, err)
	assert.Equal(t, "oud-house.example.com", u.Host)
	assert.Equal(t, "/p/1001", u.Path)
	assert.Equal(t, "souq", u.Query().Get("utm_source"))
	assert.Equal(t, "marketplace", u.Query().Get("utm_medium"))
	assert.Equal(t, "product_click", u.Query().Get("utm_campaign"))
	assert.Equal(t, result.TrackingID, u.Query().Get(TrackingParam))

	stored, err := f.clicks.FindByTrackingID(context.Background(), result.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, f.product.MerchantID, stored.MerchantID)
	assert.Equal(t, result.TrackingURL, stored.DestinationURL)
	assert.NotContains(t, stored.IPHash, "203.0.113.7")
	assert.False(t, stored.IsExpired(f.now.Add(23*time.Hour)))
	assert.True(t, stored.IsExpired(f.now.Add(24*time.Hour)))

	assert.Equal(t, 1, f.trending.byType(tracking.EventClick))
	assert.Equal(t, 1, f.products.counter(f.product.ID, catalog.CounterClicks))
	assert.Equal(t, 1, f.metrics.accepted[string(tracking.EventClick)])
}

func TestClickService_ExplicitExternalURL(t *testing.T) {
	f := newClickFixture(t)
	f.product.ExternalURL = "https://oud-house.example.com/royal-oud?color=gold"

	result := f.click(t)
	u, err := url.Parse(result.TrackingURL)
	require.NoError(t, err)
	assert.Equal(t, "/royal-oud", u.Path)
	assert.Equal(t, "gold", u.Query().Get("color"), "existing query is kept")
	assert.Equal(t, result.TrackingID, u.Query().Get(TrackingParam))
}

func TestClickService_UniqueTrackingIDs(t *testing.T) {
	f := newClickFixture(t)
	seen := make(map[string]bool)
	for range 5 {
		id := f.click(t).TrackingID
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestClickService_UnqualifiedClickIsStoredWithoutSignal(t *testing.T) {
	f := newClickFixture(t)

	result, err := f.service.TrackClick(context.Background(), ClickRequest{
		ProductID: f.product.ID,
		ClientIP:  "203.0.113.7",
		UserAgent: "Mozilla/5.0 (compatible; bingbot/2.0)",
		Referrer:  baseURL + "/",
	})
	require.NoError(t, err)
	assert.False(t, result.Qualified)
	assert.NotEmpty(t, result.TrackingURL, "bots are still redirected")

	stored, err := f.clicks.FindByTrackingID(context.Background(), result.TrackingID)
	require.NoError(t, err)
	assert.False(t, stored.Qualified)
	assert.Equal(t, tracking.ReasonBotUserAgent, stored.DisqualifyReason)

	assert.Zero(t, f.trending.byType(tracking.EventClick))
	assert.Zero(t, f.products.counter(f.product.ID, catalog.CounterClicks))
	assert.Equal(t, 1, f.metrics.rejected[string(tracking.EventClick)])
}

func TestClickService_TrackClickErrors(t *testing.T) {
	t.Run("unknown product", func(t *testing.T) {
		f := newClickFixture(t)
		_, err := f.service.TrackClick(context.Background(), ClickRequest{ProductID: uuid.New()})
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
		assert.Empty(t, f.clicks.rows)
	})

	t.Run("no store url", func(t *testing.T) {
		f := newClickFixture(t)
		f.product.Platform = integration.PlatformZid
		_, err := f.service.TrackClick(context.Background(), ClickRequest{ProductID: f.product.ID})
		assert.ErrorIs(t, err, catalog.ErrDestinationUnavailable)
	})

	t.Run("unusable external url", func(t *testing.T) {
		f := newClickFixture(t)
		f.product.ExternalURL = "javascript:alert(1)"
		_, err := f.service.TrackClick(context.Background(), ClickRequest{ProductID: f.product.ID})
		assert.ErrorIs(t, err, catalog.ErrDestinationUnavailable)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newClickFixture(t)
		f.products.err = errors.New("connection reset")
		_, err := f.service.TrackClick(context.Background(), ClickRequest{ProductID: f.product.ID})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestClickService_TrackEvent(t *testing.T) {
	ctx := context.Background()
	event := func(f *clickFixture, eventType tracking.EventType) EventRequest {
		return EventRequest{
			ProductID: f.product.ID,
			EventType: eventType,
			ClientIP:  "198.51.100.4",
			UserAgent: browserUA,
			Referrer:  baseURL + "/products/royal-oud",
		}
	}

	t.Run("view increments the counter", func(t *testing.T) {
		f := newClickFixture(t)
		assert.True(t, f.service.TrackEvent(ctx, event(f, tracking.EventView)))
		assert.Equal(t, 1, f.trending.byType(tracking.EventView))
		assert.Equal(t, 1, f.products.counter(f.product.ID, catalog.CounterViews))
		require.Len(t, f.trending.entries, 1)
		assert.Equal(t, 1.0, f.trending.entries[0].Weight)
	})

	t.Run("save is logged without a counter", func(t *testing.T) {
		f := newClickFixture(t)
		assert.True(t, f.service.TrackEvent(ctx, event(f, tracking.EventSave)))
		require.Len(t, f.trending.entries, 1)
		assert.Equal(t, 3.0, f.trending.entries[0].Weight)
		assert.Zero(t, f.products.counter(f.product.ID, catalog.CounterViews))
	})

	t.Run("click and order are not engagement events", func(t *testing.T) {
		f := newClickFixture(t)
		assert.False(t, f.service.TrackEvent(ctx, event(f, tracking.EventClick)))
		assert.False(t, f.service.TrackEvent(ctx, event(f, tracking.EventOrder)))
		assert.Empty(t, f.trending.entries)
		assert.Empty(t, f.limiter.hits)
	})

	t.Run("foreign referrer is dropped silently", func(t *testing.T) {
		f := newClickFixture(t)
		req := event(f, tracking.EventView)
		req.Referrer = "https://elsewhere.example.com/"
		assert.False(t, f.service.TrackEvent(ctx, req))
		assert.Empty(t, f.trending.entries)
		assert.Equal(t, 1, f.metrics.rejected[string(tracking.EventView)])
	})

	t.Run("per ip and product limit", func(t *testing.T) {
		f := newClickFixture(t)
		for range 2 {
			assert.True(t, f.service.TrackEvent(ctx, event(f, tracking.EventView)))
		}
		assert.False(t, f.service.TrackEvent(ctx, event(f, tracking.EventView)))
		assert.Equal(t, 2, f.products.counter(f.product.ID, catalog.CounterViews))
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newClickFixture(t)
		req := event(f, tracking.EventView)
		req.ProductID = uuid.New()
		assert.False(t, f.service.TrackEvent(ctx, req))
		assert.Empty(t, f.trending.entries)
	})

	t.Run("log failure", func(t *testing.T) {
		f := newClickFixture(t)
		f.trending.err = errors.New("disk full")
		assert.False(t, f.service.TrackEvent(ctx, event(f, tracking.EventView)))
		assert.Zero(t, f.products.counter(f.product.ID, catalog.CounterViews))
	})
}
