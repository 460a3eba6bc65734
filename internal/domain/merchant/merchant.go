// Package merchant contains the Merchant aggregate: a seller with one or more
// connected platform stores and the per-merchant sync lock.
package merchant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
)

var (
	ErrMerchantNotFound   = shared.NewDomainError("MERCHANT_NOT_FOUND", "Merchant not found")
	ErrNotConnected       = shared.NewDomainError("NOT_CONNECTED", "No e-commerce platform is connected for this merchant")
	ErrCredentialsInvalid = shared.NewDomainError("CREDENTIALS_INVALID", "Platform credentials are invalid, reconnect the store")
)

// LockConflictError is returned when a sync is already running or the
// cooldown window has not elapsed.
type LockConflictError struct {
	RetryAfter time.Duration
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("sync already in progress or cooling down, retry in %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait hint up to whole seconds, never below one
func (e *LockConflictError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// PlatformConnection is a merchant's store on one platform together with its OAuth tokens
type PlatformConnection struct {
	MerchantID           uuid.UUID
	Platform             integration.PlatformCode
	StoreID              string
	StoreURL             string
	AccessToken          string
	RefreshToken         string
	TokenExpiresAt       *time.Time
	CredentialsInvalidAt *time.Time
}

// IsConnected reports whether the store can be called
func (c *PlatformConnection) IsConnected() bool {
	return c != nil && c.StoreID != "" && c.AccessToken != ""
}

// TokenExpiresWithin reports whether the access token expires before now+skew.
// Connections without a known expiry are treated as valid.
func (c *PlatformConnection) TokenExpiresWithin(now time.Time, skew time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return !now.Add(skew).Before(*c.TokenExpiresAt)
}

// Store returns the connection as an integration.StoreConnection
func (c *PlatformConnection) Store() integration.StoreConnection {
	return integration.StoreConnection{StoreID: c.StoreID, StoreURL: c.StoreURL}
}

// Merchant is a seller whose store catalogs and orders are synced into the marketplace
type Merchant struct {
	shared.BaseEntity
	Name            string
	LastSyncAt      *time.Time
	AutoSyncEnabled bool
	CommissionRate  decimal.Decimal
	Connections     []PlatformConnection
}

// Connection returns the connection for the platform, or nil
func (m *Merchant) Connection(platform integration.PlatformCode) *PlatformConnection {
	for i := range m.Connections {
		if m.Connections[i].Platform == platform {
			return &m.Connections[i]
		}
	}
	return nil
}

// SelectPlatform picks the platform to sync: the requested one if it is valid
// and connected, else the first connected platform in preference order.
func (m *Merchant) SelectPlatform(requested integration.PlatformCode) (*PlatformConnection, error) {
	if requested.IsValid() {
		if conn := m.Connection(requested); conn.IsConnected() {
			return conn, nil
		}
	}
	for _, code := range integration.AllPlatforms {
		if conn := m.Connection(code); conn.IsConnected() {
			return conn, nil
		}
	}
	return nil, ErrNotConnected
}

// CanSyncAt reports whether the cooldown window has elapsed at now
func (m *Merchant) CanSyncAt(now time.Time, cooldown time.Duration) bool {
	return m.LastSyncAt == nil || !m.LastSyncAt.After(now.Add(-cooldown))
}

// RetryAfter returns how long until the cooldown elapses
func (m *Merchant) RetryAfter(now time.Time, cooldown time.Duration) time.Duration {
	if m.LastSyncAt == nil {
		return 0
	}
	wait := m.LastSyncAt.Add(cooldown).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Repository persists merchants and performs the sync lock transitions
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Merchant, error)
	FindByStore(ctx context.Context, platform integration.PlatformCode, storeID string) (*Merchant, error)
	// ListAutoSyncIDs returns merchants that opted into scheduled syncs
	ListAutoSyncIDs(ctx context.Context) ([]uuid.UUID, error)

	// AcquireSyncLock sets last_sync_at = now only where it is null or older
	// than now-cooldown, in a single conditional update. It returns false when
	// no row was updated.
	AcquireSyncLock(ctx context.Context, id uuid.UUID, now time.Time, cooldown time.Duration) (bool, error)
	// RestoreSyncLock reverts last_sync_at to previous if it still holds lockedAt.
	RestoreSyncLock(ctx context.Context, id uuid.UUID, previous *time.Time, lockedAt time.Time) error

	// UpdateTokens stores a rotated token set and clears any credential quarantine.
	UpdateTokens(ctx context.Context, id uuid.UUID, platform integration.PlatformCode, tokens integration.TokenSet) error
	MarkCredentialsInvalid(ctx context.Context, id uuid.UUID, platform integration.PlatformCode, at time.Time) error
}
