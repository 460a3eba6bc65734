package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Outcome labels recorded on marketplace counters
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// MarketplaceMetrics records sync, webhook and tracking activity.
// A nil *MarketplaceMetrics is valid and records nothing.
type MarketplaceMetrics struct {
	syncRuns       *Counter
	syncDuration   *Histogram
	webhookEvents  *Counter
	trackingEvents *Counter
}

// NewMarketplaceMetrics registers the marketplace instruments on meter.
func NewMarketplaceMetrics(meter metric.Meter) (*MarketplaceMetrics, error) {
	syncRuns, err := NewCounter(meter, "marketplace.sync.runs", "Merchant sync runs by outcome", "{run}")
	if err != nil {
		return nil, err
	}
	syncDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "marketplace.sync.duration",
		Description: "Wall time of a merchant sync run",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	webhookEvents, err := NewCounter(meter, "marketplace.webhook.events", "Inbound platform webhooks by outcome", "{event}")
	if err != nil {
		return nil, err
	}
	trackingEvents, err := NewCounter(meter, "marketplace.tracking.events", "Storefront engagement events by type", "{event}")
	if err != nil {
		return nil, err
	}

	return &MarketplaceMetrics{
		syncRuns:       syncRuns,
		syncDuration:   syncDuration,
		webhookEvents:  webhookEvents,
		trackingEvents: trackingEvents,
	}, nil
}

// RecordSyncRun counts one sync attempt and its duration.
func (m *MarketplaceMetrics) RecordSyncRun(ctx context.Context, platform, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.Inc(ctx, AttrPlatform.String(platform), AttrOutcome.String(outcome))
	m.syncDuration.RecordDuration(ctx, elapsed, AttrPlatform.String(platform), AttrOutcome.String(outcome))
}

// RecordWebhook counts one inbound webhook.
func (m *MarketplaceMetrics) RecordWebhook(ctx context.Context, platform, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Inc(ctx, AttrPlatform.String(platform), AttrOutcome.String(outcome))
}

// RecordTrackingEvent counts one click or engagement event.
func (m *MarketplaceMetrics) RecordTrackingEvent(ctx context.Context, eventType string, accepted bool) {
	if m == nil {
		return
	}
	m.trackingEvents.Inc(ctx, AttrEventType.String(eventType), AttrAccepted.Bool(accepted))
}
