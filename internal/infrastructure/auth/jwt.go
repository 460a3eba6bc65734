// Package auth issues and validates the bearer tokens that internal callers
// present on merchant and admin routes.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/souq/backend/internal/infrastructure/config"
)

// Scope values carried in the scope claim
const (
	ScopeMerchant = "merchant"
	ScopeAdmin    = "admin"
)

// Common errors
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidClaims       = errors.New("invalid token claims")
	ErrTokenNotYetValid    = errors.New("token is not yet valid")
	ErrMissingMerchantID   = errors.New("missing merchant_id in claims")
	ErrUnknownScope        = errors.New("unknown scope")
	ErrSecretNotConfigured = errors.New("jwt secret not configured")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	MerchantID string `json:"merchant_id,omitempty"`
	Scope      string `json:"scope"`
}

// JWTService handles JWT token operations
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.TokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// GenerateTokenInput contains input for token generation
type GenerateTokenInput struct {
	Subject    string
	MerchantID uuid.UUID
	Scope      string
}

// IssuedToken is a signed token and its expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // Bearer
}

// GenerateToken signs a token for the given merchant or admin caller
func (s *JWTService) GenerateToken(input GenerateTokenInput) (*IssuedToken, error) {
	if len(s.secret) == 0 {
		return nil, ErrSecretNotConfigured
	}
	if input.Scope != ScopeMerchant && input.Scope != ScopeAdmin {
		return nil, ErrUnknownScope
	}
	if input.Scope == ScopeMerchant && input.MerchantID == uuid.Nil {
		return nil, ErrMissingMerchantID
	}

	now := time.Now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.Subject,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scope: input.Scope,
	}
	if input.MerchantID != uuid.Nil {
		claims.MerchantID = input.MerchantID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// ValidateToken validates a token and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	switch claims.Scope {
	case ScopeAdmin:
	case ScopeMerchant:
		if _, err := uuid.Parse(claims.MerchantID); err != nil {
			return nil, ErrMissingMerchantID
		}
	default:
		return nil, ErrUnknownScope
	}

	return claims, nil
}

// IsAdmin reports whether the token carries the admin scope
func (c *Claims) IsAdmin() bool {
	return c.Scope == ScopeAdmin
}

// GetMerchantUUID extracts and parses the merchant ID from claims
func (c *Claims) GetMerchantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.MerchantID)
}

// CanAccessMerchant reports whether the caller may act on merchantID.
// Admin tokens may act on any merchant.
func (c *Claims) CanAccessMerchant(merchantID uuid.UUID) bool {
	if c.IsAdmin() {
		return true
	}
	id, err := c.GetMerchantUUID()
	return err == nil && id == merchantID
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetExpiration returns the token lifetime
func (s *JWTService) GetExpiration() time.Duration {
	return s.expiration
}
