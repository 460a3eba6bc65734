package dto

import "time"

// ============================================================================
// Sync
// ============================================================================

// SyncRequest is the optional body of a sync trigger
type SyncRequest struct {
	Platform   string `json:"platform" binding:"omitempty,platform"`
	SyncOrders *bool  `json:"sync_orders"`
}

// SyncSummaryResponse counts what a sync changed
type SyncSummaryResponse struct {
	ProductsCreated        int `json:"products_created"`
	ProductsUpdated        int `json:"products_updated"`
	CategoriesCreated      int `json:"categories_created"`
	CategoriesUpdated      int `json:"categories_updated"`
	OrdersSeen             int `json:"orders_seen"`
	OrdersUpserted         int `json:"orders_upserted"`
	OrdersWithProductMatch int `json:"orders_with_product_match"`
}

// SyncResponse is returned by a completed sync
type SyncResponse struct {
	Platform   string              `json:"platform"`
	Summary    SyncSummaryResponse `json:"summary"`
	DurationMs int64               `json:"duration_ms"`
}

// SyncStatusResponse reports whether a sync may start now
type SyncStatusResponse struct {
	LastSyncAt      *time.Time `json:"last_sync_at"`
	CanSyncNow      bool       `json:"can_sync_now"`
	AutoSyncEnabled bool       `json:"auto_sync_enabled"`
}

// ============================================================================
// Webhooks
// ============================================================================

// WebhookResponse acknowledges a delivery
type WebhookResponse struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// ============================================================================
// Tracking
// ============================================================================

// ProductURI binds the product id path parameter
type ProductURI struct {
	ProductID string `uri:"product_id" binding:"required,uuid"`
}

// ClickResponse carries the outbound URL for a tracked click
type ClickResponse struct {
	TrackingID  string    `json:"tracking_id"`
	TrackingURL string    `json:"tracking_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TrackEventRequest is an engagement signal
type TrackEventRequest struct {
	EventType string `json:"event_type" binding:"required,event_type"`
}

// TrackEventResponse is returned for every well-formed event
type TrackEventResponse struct {
	Accepted bool `json:"accepted"`
}

// ============================================================================
// Trending
// ============================================================================

// TrendingWeights overrides the per-event weights
type TrendingWeights struct {
	View  float64 `json:"view" binding:"gte=0"`
	Save  float64 `json:"save" binding:"gte=0"`
	Click float64 `json:"click" binding:"gte=0"`
	Order float64 `json:"order" binding:"gte=0"`
}

// TrendingRecomputeRequest optionally overrides the trending policy.
// A half life of -1 disables decay.
type TrendingRecomputeRequest struct {
	WindowHours   int              `json:"window_hours" form:"window_hours" binding:"gte=0,lte=8760"`
	HalfLifeHours int              `json:"half_life_hours" form:"half_life_hours" binding:"gte=-1,lte=8760"`
	Weights       *TrendingWeights `json:"weights" form:"-"`
}

// TrendingRecomputeResponse summarizes a recompute
type TrendingRecomputeResponse struct {
	ProductsScored int   `json:"products_scored"`
	DurationMs     int64 `json:"duration_ms"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse reports service health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}
