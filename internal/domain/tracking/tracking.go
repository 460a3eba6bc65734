// Package tracking contains outbound click attribution records and the
// append-only engagement log that feeds trending scores.
package tracking

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/shared"
)

var ErrClickNotFound = shared.NewDomainError("CLICK_NOT_FOUND", "Tracking id not found")

// EventType is an engagement signal kind
type EventType string

const (
	EventView  EventType = "VIEW"
	EventSave  EventType = "SAVE"
	EventClick EventType = "CLICK"
	EventOrder EventType = "ORDER"
)

// IsEngagement reports whether the type may be submitted through trackEvent
func (t EventType) IsEngagement() bool {
	return t == EventView || t == EventSave
}

// Weights is the per-event-type scoring policy
type Weights struct {
	View  float64
	Save  float64
	Click float64
	Order float64
}

// DefaultWeights returns view=1, save=3, click=5, order=20
func DefaultWeights() Weights {
	return Weights{View: 1, Save: 3, Click: 5, Order: 20}
}

// For returns the weight of an event type
func (w Weights) For(t EventType) float64 {
	switch t {
	case EventView:
		return w.View
	case EventSave:
		return w.Save
	case EventClick:
		return w.Click
	case EventOrder:
		return w.Order
	}
	return 0
}

// DisqualifyReason explains why a click or event did not qualify
type DisqualifyReason string

const (
	ReasonBotUserAgent     DisqualifyReason = "bot_user_agent"
	ReasonForeignReferrer  DisqualifyReason = "foreign_referrer"
	ReasonReferrerPath     DisqualifyReason = "referrer_path"
	ReasonRateLimitedIP    DisqualifyReason = "rate_limited_ip"
	ReasonRateLimitedPair  DisqualifyReason = "rate_limited_ip_product"
	ReasonMissingUserAgent DisqualifyReason = "missing_user_agent"
)

// ClickTracking is one outbound click. It is immutable after creation.
type ClickTracking struct {
	ID               uuid.UUID
	TrackingID       string
	ProductID        uuid.UUID
	MerchantID       uuid.UUID
	DestinationURL   string
	Qualified        bool
	DisqualifyReason DisqualifyReason
	IPHash           string
	UserAgent        string
	Referrer         string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// IsExpired reports whether the attribution window has closed
func (c *ClickTracking) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TrendingLog is one weighted engagement event. Rows are only ever inserted.
type TrendingLog struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	EventType EventType
	Weight    float64
	CreatedAt time.Time
}

// NewTrendingLog creates a log entry weighted by the policy
func NewTrendingLog(productID uuid.UUID, eventType EventType, weights Weights) *TrendingLog {
	return &TrendingLog{
		ID:        uuid.New(),
		ProductID: productID,
		EventType: eventType,
		Weight:    weights.For(eventType),
		CreatedAt: time.Now(),
	}
}

// DecayedWeight halves the weight every halfLife of age. A non-positive
// halfLife disables decay; events from the future count at full weight.
func DecayedWeight(weight float64, age, halfLife time.Duration) float64 {
	if halfLife <= 0 || age <= 0 {
		return weight
	}
	return weight * math.Pow(0.5, float64(age)/float64(halfLife))
}

// ClickRepository persists click records
type ClickRepository interface {
	Create(ctx context.Context, click *ClickTracking) error
	FindByTrackingID(ctx context.Context, trackingID string) (*ClickTracking, error)
}

// TrendingLogRepository persists the engagement log
type TrendingLogRepository interface {
	Append(ctx context.Context, entry *TrendingLog) error
	// ScanSince streams entries created at or after since in batches.
	// Entries arrive in no particular order.
	ScanSince(ctx context.Context, since time.Time, fn func(batch []TrendingLog) error) error
}
