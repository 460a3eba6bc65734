package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"go.uber.org/zap"
)

// DefaultTokenRefreshSkew refreshes tokens that expire within this window
const DefaultTokenRefreshSkew = 60 * time.Second

// CredentialManager keeps merchant OAuth tokens valid. Rotated tokens are
// persisted immediately because platforms invalidate the old refresh token.
type CredentialManager struct {
	merchants merchant.Repository
	refresher integration.TokenRefresher
	skew      time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewCredentialManager creates a new CredentialManager
func NewCredentialManager(merchants merchant.Repository, refresher integration.TokenRefresher, skew time.Duration, logger *zap.Logger) *CredentialManager {
	if skew <= 0 {
		skew = DefaultTokenRefreshSkew
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialManager{
		merchants: merchants,
		refresher: refresher,
		skew:      skew,
		now:       time.Now,
		logger:    logger,
	}
}

// EnsureAccessToken returns a token for the connection, refreshing it first
// when it expires within the skew window
func (m *CredentialManager) EnsureAccessToken(ctx context.Context, merchantID uuid.UUID, conn *merchant.PlatformConnection) (string, error) {
	if !conn.IsConnected() {
		return "", merchant.ErrNotConnected
	}
	if !conn.TokenExpiresWithin(m.now(), m.skew) {
		return conn.AccessToken, nil
	}

	m.logger.Info("Access token expiring, refreshing ahead of use",
		zap.String("merchant_id", merchantID.String()),
		zap.String("platform", conn.Platform.String()),
	)
	tokens, err := m.RefreshAccessToken(ctx, merchantID, conn)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// RefreshAccessToken exchanges the refresh token, persists the new pair and
// updates conn in place. A rejected grant quarantines the connection.
func (m *CredentialManager) RefreshAccessToken(ctx context.Context, merchantID uuid.UUID, conn *merchant.PlatformConnection) (*integration.TokenSet, error) {
	tokens, err := m.refresher.Refresh(ctx, conn.Platform, conn.RefreshToken)
	if err != nil {
		if errors.Is(err, integration.ErrCredentialsInvalid) {
			m.quarantine(ctx, merchantID, conn)
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", integration.ErrCredentialsInvalid, err)
	}

	// Some platforms rotate only the access token
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = conn.RefreshToken
	}
	if err := m.merchants.UpdateTokens(ctx, merchantID, conn.Platform, *tokens); err != nil {
		return nil, fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	conn.AccessToken = tokens.AccessToken
	conn.RefreshToken = tokens.RefreshToken
	conn.CredentialsInvalidAt = nil
	if tokens.ExpiresAt.IsZero() {
		conn.TokenExpiresAt = nil
	} else {
		expiresAt := tokens.ExpiresAt
		conn.TokenExpiresAt = &expiresAt
	}

	m.logger.Info("Access token refreshed",
		zap.String("merchant_id", merchantID.String()),
		zap.String("platform", conn.Platform.String()),
	)
	return tokens, nil
}

// Source returns a CredentialSource for one sync, refreshing up front when
// the stored token is about to expire
func (m *CredentialManager) Source(ctx context.Context, merchantID uuid.UUID, conn merchant.PlatformConnection) (integration.CredentialSource, error) {
	if _, err := m.EnsureAccessToken(ctx, merchantID, &conn); err != nil {
		return nil, err
	}
	return &connectionCredentials{manager: m, merchantID: merchantID, conn: conn}, nil
}

func (m *CredentialManager) quarantine(ctx context.Context, merchantID uuid.UUID, conn *merchant.PlatformConnection) {
	at := m.now()
	m.logger.Warn("Refresh grant rejected, quarantining credentials",
		zap.String("merchant_id", merchantID.String()),
		zap.String("platform", conn.Platform.String()),
	)
	if err := m.merchants.MarkCredentialsInvalid(ctx, merchantID, conn.Platform, at); err != nil {
		m.logger.Error("Failed to mark credentials invalid",
			zap.String("merchant_id", merchantID.String()),
			zap.Error(err),
		)
		return
	}
	conn.CredentialsInvalidAt = &at
}

// connectionCredentials is an immutable snapshot of one connection's tokens
type connectionCredentials struct {
	manager    *CredentialManager
	merchantID uuid.UUID
	conn       merchant.PlatformConnection
}

// CurrentToken returns the access token held by this snapshot
func (c *connectionCredentials) CurrentToken() string {
	return c.conn.AccessToken
}

// Refreshed rotates the tokens and returns a new snapshot
func (c *connectionCredentials) Refreshed(ctx context.Context) (integration.CredentialSource, error) {
	next := c.conn
	if _, err := c.manager.RefreshAccessToken(ctx, c.merchantID, &next); err != nil {
		return nil, err
	}
	return &connectionCredentials{manager: c.manager, merchantID: c.merchantID, conn: next}, nil
}

var _ integration.CredentialSource = (*connectionCredentials)(nil)
