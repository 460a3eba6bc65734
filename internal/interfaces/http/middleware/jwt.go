package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/souq/backend/internal/infrastructure/auth"
	"github.com/souq/backend/internal/infrastructure/logger"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey     = "jwt_claims"
	JWTMerchantIDKey = "jwt_merchant_id"
	JWTScopeKey      = "jwt_scope"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// Validator is required for token validation
	Validator TokenValidator
	// Optional callback if token is invalid (default: return 401)
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(validator TokenValidator, log *zap.Logger) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{Validator: validator, Logger: log})
}

// JWTAuthMiddlewareWithConfig creates JWT authentication middleware with custom config
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Validator.ValidateToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTMerchantIDKey, claims.MerchantID)
		c.Set(JWTScopeKey, claims.Scope)

		if claims.MerchantID != "" {
			ctx := c.Request.Context()
			ctx, _ = logger.WithMerchantID(ctx, logger.FromContext(ctx), claims.MerchantID)
			c.Request = c.Request.WithContext(ctx)
		}

		cfg.Logger.Debug("JWT authentication successful",
			zap.String("subject", claims.Subject),
			zap.String("merchant_id", claims.MerchantID),
			zap.String("scope", claims.Scope),
		)

		c.Next()
	}
}

// handleAuthError handles authentication errors
func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		c.Abort()
		return
	}

	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code := dto.ErrCodeUnauthorized
	errorMessage := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code = dto.ErrCodeTokenExpired
		errorMessage = "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code = dto.ErrCodeTokenInvalid
		errorMessage = "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingMerchantID), errors.Is(err, auth.ErrUnknownScope):
		code = dto.ErrCodeTokenInvalid
		errorMessage = "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, errorMessage, c.GetString(RequestIDKey)))
}

// forbid aborts with 403
func forbid(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, message, c.GetString(RequestIDKey)))
}

// RequireMerchantAccess allows the request when the path merchant equals the
// token's merchant, or the token carries the admin scope. It must run after
// JWTAuthMiddleware.
func RequireMerchantAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			forbid(c, "Merchant access requires authentication")
			return
		}
		merchantID, err := uuid.Parse(c.Param(param))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Invalid merchant ID format", c.GetString(RequestIDKey)))
			return
		}
		if !claims.CanAccessMerchant(merchantID) {
			forbid(c, "Token is not valid for this merchant")
			return
		}
		c.Next()
	}
}

// RequireAdmin allows only tokens with the admin scope. It must run after
// JWTAuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil || !claims.IsAdmin() {
			forbid(c, "Admin scope required")
			return
		}
		c.Next()
	}
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTMerchantID retrieves the merchant ID from JWT claims in context
func GetJWTMerchantID(c *gin.Context) string {
	return c.GetString(JWTMerchantIDKey)
}
