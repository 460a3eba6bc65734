package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	browserUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1"
	baseURL   = "https://souq.example.com"
)

func testFilterConfig() EventFilterConfig {
	return EventFilterConfig{
		BaseURL:              baseURL,
		AllowedReferrerPaths: []string{"/", "/products/", "/search"},
		BotUserAgents:        []string{"Bot", "crawler", "curl"},
		PerIPLimit:           5,
		PerIPProductLimit:    2,
		Window:               time.Hour,
	}
}

func newTestFilter(t *testing.T, limiter RateLimiter) *EventFilter {
	t.Helper()
	f, err := NewEventFilter(testFilterConfig(), limiter, zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

func TestEventFilter_Heuristics(t *testing.T) {
	productID := uuid.New()

	tests := []struct {
		name     string
		ua       string
		referrer string
		want     Verdict
	}{
		{"browser from product page", browserUA, baseURL + "/products/royal-oud", qualified()},
		{"home page", browserUA, baseURL + "/", qualified()},
		{"origin without path", browserUA, baseURL, qualified()},
		{"search with query", browserUA, baseURL + "/search?q=oud", qualified()},
		{"origin is case insensitive", browserUA, "HTTPS://Souq.Example.com/products/x", qualified()},
		{"missing user agent", "", baseURL + "/", rejected(tracking.ReasonMissingUserAgent)},
		{"bot substring", "Mozilla/5.0 (compatible; Googlebot/2.1)", baseURL + "/", rejected(tracking.ReasonBotUserAgent)},
		{"curl", "curl/8.4.0", baseURL + "/", rejected(tracking.ReasonBotUserAgent)},
		{"missing referrer", browserUA, "", rejected(tracking.ReasonForeignReferrer)},
		{"foreign origin", browserUA, "https://evil.example.com/products/x", rejected(tracking.ReasonForeignReferrer)},
		{"lookalike origin", browserUA, "https://souq.example.com.evil.io/products/x", rejected(tracking.ReasonForeignReferrer)},
		{"plain http", browserUA, "http://souq.example.com/products/x", rejected(tracking.ReasonForeignReferrer)},
		{"admin path", browserUA, baseURL + "/admin/products", rejected(tracking.ReasonReferrerPath)},
		{"prefix without boundary", browserUA, baseURL + "/searchengine", rejected(tracking.ReasonReferrerPath)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter(t, nil)
			got := f.Evaluate(context.Background(), Signal{Scope: scopeEvent, ProductID: productID, IPHash: "ip", UserAgent: tt.ua, Referrer: tt.referrer})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventFilter_RateLimits(t *testing.T) {
	ctx := context.Background()
	f := newTestFilter(t, newCountingLimiter())
	signal := func(ip string, product uuid.UUID) Signal {
		return Signal{Scope: scopeEvent, ProductID: product, IPHash: ip, UserAgent: browserUA, Referrer: baseURL + "/"}
	}

	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()

	// Per IP and product: 2 per window
	assert.True(t, f.Evaluate(ctx, signal("a", p1)).Qualified)
	assert.True(t, f.Evaluate(ctx, signal("a", p1)).Qualified)
	assert.Equal(t, rejected(tracking.ReasonRateLimitedPair), f.Evaluate(ctx, signal("a", p1)))

	// Other products from the same IP count toward the global limit of 5
	assert.True(t, f.Evaluate(ctx, signal("a", p2)).Qualified)
	assert.True(t, f.Evaluate(ctx, signal("a", p3)).Qualified)
	assert.Equal(t, rejected(tracking.ReasonRateLimitedIP), f.Evaluate(ctx, signal("a", uuid.New())))

	// Another IP is independent
	assert.True(t, f.Evaluate(ctx, signal("b", p1)).Qualified)

	// Clicks are counted separately from events
	click := signal("a", p1)
	click.Scope = scopeClick
	assert.True(t, f.Evaluate(ctx, click).Qualified)
}

func TestEventFilter_RejectedSignalsUseNoQuota(t *testing.T) {
	ctx := context.Background()
	limiter := newCountingLimiter()
	f := newTestFilter(t, limiter)

	f.Evaluate(ctx, Signal{Scope: scopeEvent, IPHash: "a", UserAgent: "crawler", Referrer: baseURL})
	assert.Empty(t, limiter.hits)
}

func TestEventFilter_LimiterFailureLetsSignalThrough(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.err = errors.New("redis: connection refused")
	f := newTestFilter(t, limiter)

	got := f.Evaluate(context.Background(), Signal{Scope: scopeEvent, IPHash: "a", UserAgent: browserUA, Referrer: baseURL})
	assert.True(t, got.Qualified)
}

func TestNewEventFilter_RequiresOrigin(t *testing.T) {
	for _, raw := range []string{"", "souq.example.com", "/relative"} {
		cfg := testFilterConfig()
		cfg.BaseURL = raw
		_, err := NewEventFilter(cfg, nil, nil)
		assert.Error(t, err, raw)
	}
}

func TestIPHasher(t *testing.T) {
	h, err := NewIPHasher("pepper")
	require.NoError(t, err)

	a := h.Hash("203.0.113.7")
	assert.Len(t, a, 64)
	assert.Equal(t, a, h.Hash(" 203.0.113.7 "))
	assert.NotEqual(t, a, h.Hash("203.0.113.8"))
	assert.NotContains(t, a, "203")

	other, err := NewIPHasher("salt")
	require.NoError(t, err)
	assert.NotEqual(t, a, other.Hash("203.0.113.7"), "the key changes the digest")

	_, err = NewIPHasher(string(make([]byte, 65)))
	assert.Error(t, err)
}
