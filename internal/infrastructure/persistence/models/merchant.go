package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
)

// MerchantModel is the persistence model for the Merchant aggregate.
type MerchantModel struct {
	BaseModel
	Name            string                    `gorm:"type:varchar(200);not null"`
	LastSyncAt      *time.Time                `gorm:"index"`
	AutoSyncEnabled bool                      `gorm:"not null;default:false"`
	CommissionRate  decimal.Decimal           `gorm:"type:decimal(5,4);not null;default:0"`
	Connections     []PlatformConnectionModel `gorm:"foreignKey:MerchantID"`
}

// TableName returns the table name for GORM
func (MerchantModel) TableName() string {
	return "merchants"
}

// ToDomain converts the persistence model to a domain Merchant.
func (m *MerchantModel) ToDomain() *merchant.Merchant {
	out := &merchant.Merchant{
		BaseEntity:      m.BaseModel.Entity(),
		Name:            m.Name,
		LastSyncAt:      m.LastSyncAt,
		AutoSyncEnabled: m.AutoSyncEnabled,
		CommissionRate:  m.CommissionRate,
		Connections:     make([]merchant.PlatformConnection, 0, len(m.Connections)),
	}
	for i := range m.Connections {
		out.Connections = append(out.Connections, m.Connections[i].ToDomain())
	}
	return out
}

// FromDomain populates the persistence model from a domain Merchant.
func (m *MerchantModel) FromDomain(mc *merchant.Merchant) {
	m.SetEntity(mc.BaseEntity)
	m.Name = mc.Name
	m.LastSyncAt = mc.LastSyncAt
	m.AutoSyncEnabled = mc.AutoSyncEnabled
	m.CommissionRate = mc.CommissionRate
	m.Connections = make([]PlatformConnectionModel, 0, len(mc.Connections))
	for i := range mc.Connections {
		var conn PlatformConnectionModel
		conn.FromDomain(&mc.Connections[i])
		conn.MerchantID = mc.ID
		m.Connections = append(m.Connections, conn)
	}
}

// MerchantModelFromDomain creates a new persistence model from a domain Merchant.
func MerchantModelFromDomain(mc *merchant.Merchant) *MerchantModel {
	m := &MerchantModel{}
	m.FromDomain(mc)
	return m
}

// PlatformConnectionModel is one merchant store on one platform.
// A merchant has at most one connection per platform and a store belongs to one merchant.
type PlatformConnectionModel struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primary_key"`
	MerchantID           uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_connection_merchant_platform,priority:1"`
	Platform             integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_connection_merchant_platform,priority:2;uniqueIndex:idx_connection_platform_store,priority:1"`
	StoreID              string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_connection_platform_store,priority:2"`
	StoreURL             string                   `gorm:"type:varchar(500)"`
	AccessToken          string                   `gorm:"type:text"`
	RefreshToken         string                   `gorm:"type:text"`
	TokenExpiresAt       *time.Time               `gorm:"column:token_expires_at"`
	CredentialsInvalidAt *time.Time               `gorm:"column:credentials_invalid_at"`
	CreatedAt            time.Time                `gorm:"not null"`
	UpdatedAt            time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlatformConnectionModel) TableName() string {
	return "merchant_platform_connections"
}

// ToDomain converts the persistence model to a domain PlatformConnection.
func (m *PlatformConnectionModel) ToDomain() merchant.PlatformConnection {
	return merchant.PlatformConnection{
		MerchantID:           m.MerchantID,
		Platform:             m.Platform,
		StoreID:              m.StoreID,
		StoreURL:             m.StoreURL,
		AccessToken:          m.AccessToken,
		RefreshToken:         m.RefreshToken,
		TokenExpiresAt:       m.TokenExpiresAt,
		CredentialsInvalidAt: m.CredentialsInvalidAt,
	}
}

// FromDomain populates the persistence model from a domain PlatformConnection.
// ID and timestamps are left for the repository to assign.
func (m *PlatformConnectionModel) FromDomain(c *merchant.PlatformConnection) {
	m.MerchantID = c.MerchantID
	m.Platform = c.Platform
	m.StoreID = c.StoreID
	m.StoreURL = c.StoreURL
	m.AccessToken = c.AccessToken
	m.RefreshToken = c.RefreshToken
	m.TokenExpiresAt = c.TokenExpiresAt
	m.CredentialsInvalidAt = c.CredentialsInvalidAt
}
