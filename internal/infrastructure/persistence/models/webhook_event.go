package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
)

// WebhookEventModel is the persistence model for the webhook idempotency ledger.
type WebhookEventModel struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primary_key"`
	Platform       integration.PlatformCode  `gorm:"type:varchar(20);not null;uniqueIndex:idx_webhook_event_key,priority:1"`
	StoreID        string                    `gorm:"type:varchar(100);not null;uniqueIndex:idx_webhook_event_key,priority:2"`
	IdempotencyKey string                    `gorm:"type:varchar(200);not null;uniqueIndex:idx_webhook_event_key,priority:3"`
	EventType      string                    `gorm:"type:varchar(100);not null"`
	Status         integration.WebhookStatus `gorm:"type:varchar(20);not null;default:'received';index"`
	ErrorMessage   string                    `gorm:"type:text"`
	Payload        string                    `gorm:"type:text"`
	ReceivedAt     time.Time                 `gorm:"not null"`
	ProcessedAt    *time.Time                `gorm:"column:processed_at"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
func (m *WebhookEventModel) ToDomain() *integration.WebhookEvent {
	return &integration.WebhookEvent{
		ID:             m.ID,
		Platform:       m.Platform,
		StoreID:        m.StoreID,
		IdempotencyKey: m.IdempotencyKey,
		EventType:      m.EventType,
		Status:         m.Status,
		ErrorMessage:   m.ErrorMessage,
		Payload:        []byte(m.Payload),
		ReceivedAt:     m.ReceivedAt,
		ProcessedAt:    m.ProcessedAt,
	}
}

// WebhookEventModelFromDomain creates a new persistence model from a domain WebhookEvent.
func WebhookEventModelFromDomain(e *integration.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:             e.ID,
		Platform:       e.Platform,
		StoreID:        e.StoreID,
		IdempotencyKey: e.IdempotencyKey,
		EventType:      e.EventType,
		Status:         e.Status,
		ErrorMessage:   e.ErrorMessage,
		Payload:        string(e.Payload),
		ReceivedAt:     e.ReceivedAt,
		ProcessedAt:    e.ProcessedAt,
	}
}
