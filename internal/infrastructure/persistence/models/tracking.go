package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/tracking"
)

// ClickTrackingModel is the persistence model for an outbound click.
type ClickTrackingModel struct {
	ID               uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TrackingID       string                    `gorm:"type:varchar(64);not null;uniqueIndex:idx_click_tracking_id"`
	ProductID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	MerchantID       uuid.UUID                 `gorm:"type:uuid;not null;index"`
	DestinationURL   string                    `gorm:"type:text;not null"`
	Qualified        bool                      `gorm:"not null"`
	DisqualifyReason tracking.DisqualifyReason `gorm:"type:varchar(50)"`
	IPHash           string                    `gorm:"type:varchar(64);index"`
	UserAgent        string                    `gorm:"type:varchar(500)"`
	Referrer         string                    `gorm:"type:varchar(1000)"`
	ExpiresAt        time.Time                 `gorm:"not null"`
	CreatedAt        time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ClickTrackingModel) TableName() string {
	return "click_tracking"
}

// ToDomain converts the persistence model to a domain ClickTracking.
func (m *ClickTrackingModel) ToDomain() *tracking.ClickTracking {
	return &tracking.ClickTracking{
		ID:               m.ID,
		TrackingID:       m.TrackingID,
		ProductID:        m.ProductID,
		MerchantID:       m.MerchantID,
		DestinationURL:   m.DestinationURL,
		Qualified:        m.Qualified,
		DisqualifyReason: m.DisqualifyReason,
		IPHash:           m.IPHash,
		UserAgent:        m.UserAgent,
		Referrer:         m.Referrer,
		ExpiresAt:        m.ExpiresAt,
		CreatedAt:        m.CreatedAt,
	}
}

// ClickTrackingModelFromDomain creates a new persistence model from a domain ClickTracking.
func ClickTrackingModelFromDomain(c *tracking.ClickTracking) *ClickTrackingModel {
	return &ClickTrackingModel{
		ID:               c.ID,
		TrackingID:       c.TrackingID,
		ProductID:        c.ProductID,
		MerchantID:       c.MerchantID,
		DestinationURL:   c.DestinationURL,
		Qualified:        c.Qualified,
		DisqualifyReason: c.DisqualifyReason,
		IPHash:           c.IPHash,
		UserAgent:        c.UserAgent,
		Referrer:         c.Referrer,
		ExpiresAt:        c.ExpiresAt,
		CreatedAt:        c.CreatedAt,
	}
}

// TrendingLogModel is one row of the append-only engagement log.
type TrendingLogModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID          `gorm:"type:uuid;not null;index"`
	EventType tracking.EventType `gorm:"type:varchar(20);not null"`
	Weight    float64            `gorm:"not null"`
	CreatedAt time.Time          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TrendingLogModel) TableName() string {
	return "trending_logs"
}

// ToDomain converts the persistence model to a domain TrendingLog.
func (m *TrendingLogModel) ToDomain() tracking.TrendingLog {
	return tracking.TrendingLog{
		ID:        m.ID,
		ProductID: m.ProductID,
		EventType: m.EventType,
		Weight:    m.Weight,
		CreatedAt: m.CreatedAt,
	}
}

// TrendingLogModelFromDomain creates a new persistence model from a domain TrendingLog.
func TrendingLogModelFromDomain(l *tracking.TrendingLog) *TrendingLogModel {
	return &TrendingLogModel{
		ID:        l.ID,
		ProductID: l.ProductID,
		EventType: l.EventType,
		Weight:    l.Weight,
		CreatedAt: l.CreatedAt,
	}
}
