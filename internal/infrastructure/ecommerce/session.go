package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
)

// maxErrorMessageLength bounds the upstream body excerpt kept in an error
const maxErrorMessageLength = 256

// authHeaderFunc builds the platform credential headers for one request
type authHeaderFunc func(h http.Header, token string, store integration.StoreConnection)

// apiSession is the authenticated transport shared by the platform sessions.
// It owns the credential source for one sync invocation: on a 401 it
// refreshes exactly once per request and retries with the new token.
type apiSession struct {
	platform integration.PlatformCode
	baseURL  *url.URL
	store    integration.StoreConnection
	client   *ResilientClient
	retry    RetryPolicy
	auth     authHeaderFunc
	logger   *zap.Logger

	mu    sync.Mutex // Serializes refreshes and guards creds
	creds integration.CredentialSource
}

func newAPISession(
	platform integration.PlatformCode,
	baseURL *url.URL,
	store integration.StoreConnection,
	creds integration.CredentialSource,
	client *ResilientClient,
	retry RetryPolicy,
	auth authHeaderFunc,
	logger *zap.Logger,
) *apiSession {
	return &apiSession{
		platform: platform,
		baseURL:  baseURL,
		store:    store,
		client:   client,
		retry:    retry,
		auth:     auth,
		logger:   logger.With(zap.String("platform", platform.String()), zap.String("store_id", store.StoreID)),
		creds:    creds,
	}
}

// Credentials returns the current, possibly refreshed, credential source
func (s *apiSession) Credentials() integration.CredentialSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// getJSON fetches ref (a path relative to the API base or an absolute next
// link) and decodes the body into out, applying the adapter retry policy
func (s *apiSession) getJSON(ctx context.Context, ref string, query url.Values, out any) error {
	target, err := s.resolve(ref, query)
	if err != nil {
		return err
	}
	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.fetch(ctx, target, out)
	})
}

func (s *apiSession) fetch(ctx context.Context, target string, out any) error {
	token := s.Credentials().CurrentToken()
	body, err := s.get(ctx, target, token)
	if errors.Is(err, integration.ErrCredentialsExpired) {
		token, err = s.refresh(ctx, token)
		if err != nil {
			return err
		}
		body, err = s.get(ctx, target, token)
		if errors.Is(err, integration.ErrCredentialsExpired) {
			return fmt.Errorf("%w: %s rejected the refreshed token", integration.ErrCredentialsInvalid, s.platform)
		}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrInvalidResponse, s.platform, err)
	}
	return nil
}

// refresh rotates the credentials unless another caller already replaced stale
func (s *apiSession) refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.creds.CurrentToken(); current != stale {
		return current, nil
	}

	s.logger.Info("Access token rejected, refreshing")
	next, err := s.creds.Refreshed(ctx)
	if err != nil {
		s.logger.Warn("Token refresh failed", zap.Error(err))
		if errors.Is(err, integration.ErrCredentialsInvalid) {
			return "", err
		}
		// Keep the cause in the chain so callers can tell a transient
		// token endpoint failure from a rejected grant
		return "", fmt.Errorf("%w: %w", integration.ErrCredentialsInvalid, err)
	}
	s.creds = next
	return next.CurrentToken(), nil
}

func (s *apiSession) get(ctx context.Context, target, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", s.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	s.auth(req.Header, token, s.store)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &integration.UpstreamError{
			Err:        integration.ErrTransientNetwork,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if classErr := integration.ClassifyStatus(resp.StatusCode); classErr != nil {
		return nil, &integration.UpstreamError{
			Err:        classErr,
			StatusCode: resp.StatusCode,
			Message:    excerpt(body),
		}
	}
	return body, nil
}

// resolve builds the request URL. Absolute references (next links) must
// point at the configured API host.
func (s *apiSession) resolve(ref string, query url.Values) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s: bad next link: %v", integration.ErrInvalidResponse, s.platform, err)
		}
		if !strings.EqualFold(u.Host, s.baseURL.Host) {
			return "", fmt.Errorf("%w: %s: next link host %q does not match API host", integration.ErrInvalidResponse, s.platform, u.Host)
		}
		return withQuery(u, query), nil
	}

	u, err := url.Parse(strings.TrimRight(s.baseURL.String(), "/") + "/" + strings.TrimLeft(ref, "/"))
	if err != nil {
		return "", fmt.Errorf("%s: invalid path %q: %w", s.platform, ref, err)
	}
	return withQuery(u, query), nil
}

func withQuery(u *url.URL, query url.Values) string {
	if len(query) == 0 {
		return u.String()
	}
	merged := u.Query()
	for k, vs := range query {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

func excerpt(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessageLength {
		msg = msg[:maxErrorMessageLength] + "..."
	}
	return msg
}

// fieldLogger reports schema drift without failing the sync
type fieldLogger struct {
	logger   *zap.Logger
	platform integration.PlatformCode
}

func (f fieldLogger) defaulted(kind, field, externalID, fallback string) {
	f.logger.Warn("Platform field defaulted",
		zap.String("platform", f.platform.String()),
		zap.String("kind", kind),
		zap.String("field", field),
		zap.String("external_id", externalID),
		zap.String("fallback", fallback),
	)
}
