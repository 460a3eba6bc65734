package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/shared"
)

// BaseModel holds the id and timestamps every marketplace table carries
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity returns the domain view of the row identity
func (m *BaseModel) Entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// SetEntity copies a domain identity onto the row
func (m *BaseModel) SetEntity(e shared.BaseEntity) {
	m.ID, m.CreatedAt, m.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}
