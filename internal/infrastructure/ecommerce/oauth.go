package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/config"
)

// OAuthConfig holds the token endpoint credentials of one platform
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// oauthTokenResponse is the standard OAuth2 token response
type oauthTokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    flexInt `json:"expires_in"`
	TokenType    string  `json:"token_type"`
	Error        string  `json:"error"`
	Description  string  `json:"error_description"`
}

// OAuthRefresher exchanges refresh tokens at each platform's token endpoint.
// It implements integration.TokenRefresher.
type OAuthRefresher struct {
	client  *ResilientClient
	configs map[integration.PlatformCode]OAuthConfig
	now     func() time.Time
	logger  *zap.Logger
}

var _ integration.TokenRefresher = (*OAuthRefresher)(nil)

// NewOAuthRefresher creates a refresher for every platform with a token URL
func NewOAuthRefresher(client *ResilientClient, configs map[integration.PlatformCode]OAuthConfig, logger *zap.Logger) *OAuthRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthRefresher{
		client:  client,
		configs: configs,
		now:     time.Now,
		logger:  logger,
	}
}

// OAuthConfigsFrom collects the token endpoint settings of enabled platforms
func OAuthConfigsFrom(cfg *config.PlatformsConfig) map[integration.PlatformCode]OAuthConfig {
	configs := make(map[integration.PlatformCode]OAuthConfig)
	for code, p := range map[integration.PlatformCode]config.PlatformConfig{
		integration.PlatformSalla: cfg.Salla,
		integration.PlatformZid:   cfg.Zid,
	} {
		if !p.Enabled || p.TokenURL == "" {
			continue
		}
		configs[code] = OAuthConfig{
			TokenURL:     p.TokenURL,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
		}
	}
	return configs
}

// Refresh performs a refresh_token grant. A rejected grant returns
// integration.ErrCredentialsInvalid; transport failures keep their upstream class.
func (r *OAuthRefresher) Refresh(ctx context.Context, platform integration.PlatformCode, refreshToken string) (*integration.TokenSet, error) {
	cfg, ok := r.configs[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no token endpoint", integration.ErrPlatformNotConfigured, platform)
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", integration.ErrCredentialsInvalid)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create token request: %w", platform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &integration.UpstreamError{Err: integration.ErrTransientNetwork, Message: err.Error()}
	}

	var token oauthTokenResponse
	decodeErr := json.Unmarshal(body, &token)

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		r.logger.Warn("Refresh grant rejected",
			zap.String("platform", platform.String()),
			zap.Int("status", resp.StatusCode),
			zap.String("error", token.Error),
		)
		return nil, fmt.Errorf("%w: %s token endpoint returned %d %s", integration.ErrCredentialsInvalid, platform, resp.StatusCode, token.Error)
	case resp.StatusCode >= 400:
		return nil, &integration.UpstreamError{
			Err:        integration.ClassifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    excerpt(body),
		}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s token response: %v", integration.ErrInvalidResponse, platform, decodeErr)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s token response has no access_token", integration.ErrInvalidResponse, platform)
	}

	set := &integration.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if token.ExpiresIn.Set && token.ExpiresIn.Value > 0 {
		set.ExpiresAt = r.now().Add(time.Duration(token.ExpiresIn.Value) * time.Second).UTC()
	}
	return set, nil
}
