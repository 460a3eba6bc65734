package integration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Upstream error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrTransientNetwork covers timeouts and connection resets. Retryable.
	ErrTransientNetwork = errors.New("integration: transient network failure")
	// ErrRateLimited is returned for HTTP 429. Retryable, honoring Retry-After.
	ErrRateLimited = errors.New("integration: platform rate limited")
	// ErrUpstreamServer is returned for 5xx responses. Retryable with backoff.
	ErrUpstreamServer = errors.New("integration: platform server error")
	// ErrUpstreamClient is returned for 4xx responses other than 401 and 429. Never retried.
	ErrUpstreamClient = errors.New("integration: platform rejected request")
	// ErrUpstreamNotFound refines ErrUpstreamClient for 404 responses.
	ErrUpstreamNotFound = fmt.Errorf("%w: resource not found", ErrUpstreamClient)
	// ErrCredentialsExpired is returned for 401 responses before a refresh has been attempted.
	ErrCredentialsExpired = errors.New("integration: platform credentials expired")
	// ErrCredentialsInvalid means a refresh was attempted and failed; the sync must stop.
	ErrCredentialsInvalid = errors.New("integration: platform credentials invalid")
	// ErrInvalidResponse is returned when a platform response cannot be decoded.
	ErrInvalidResponse = errors.New("integration: invalid platform response")

	ErrPlatformNotConfigured = errors.New("integration: platform not configured")
	ErrInvalidPlatformCode   = errors.New("integration: invalid platform code")

	// Webhook errors
	ErrSignatureInvalid  = errors.New("integration: webhook signature invalid")
	ErrSignatureMissing  = fmt.Errorf("%w: signature header missing", ErrSignatureInvalid)
	ErrDuplicateEvent    = errors.New("integration: webhook event already recorded")
	ErrMalformedPayload  = errors.New("integration: malformed webhook payload")
	ErrWebhookNotEnabled = errors.New("integration: webhook secret not configured")
)

// UpstreamError is the typed error surfaced by the outbound HTTP stack.
// Err is one of the taxonomy sentinels above so callers can use errors.Is.
type UpstreamError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v (status %d): %s", e.Err, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

// Unwrap exposes the taxonomy sentinel
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status code to a taxonomy sentinel.
// It returns nil for 2xx and 3xx codes.
func ClassifyStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == 401:
		return ErrCredentialsExpired
	case status == 404:
		return ErrUpstreamNotFound
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrUpstreamServer
	default:
		return ErrUpstreamClient
	}
}

// IsRetryable reports whether err belongs to a retryable class.
// Credential failures are fatal even when their cause was transient.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCredentialsInvalid) {
		return false
	}
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamServer)
}

// RetryAfterHint extracts the server-provided wait time from err, if any
func RetryAfterHint(err error) time.Duration {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.RetryAfter
	}
	return 0
}

// ---------------------------------------------------------------------------
// PlatformCode
// ---------------------------------------------------------------------------

// PlatformCode identifies an external e-commerce platform
type PlatformCode string

const (
	// PlatformSalla is Platform A. Listings report page counts.
	PlatformSalla PlatformCode = "salla"
	// PlatformZid is Platform B. Listings report a next link.
	PlatformZid PlatformCode = "zid"
)

// AllPlatforms lists supported platforms in selection preference order
var AllPlatforms = []PlatformCode{PlatformSalla, PlatformZid}

// IsValid returns true if the platform code is supported
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformSalla, PlatformZid:
		return true
	}
	return false
}

// String returns the string representation
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human readable platform name
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformSalla:
		return "Salla"
	case PlatformZid:
		return "Zid"
	}
	return string(c)
}

// ParsePlatformCode validates and converts a raw string
func ParsePlatformCode(raw string) (PlatformCode, error) {
	code := PlatformCode(raw)
	if !code.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatformCode, raw)
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// StoreConnection identifies a merchant's store on a platform
type StoreConnection struct {
	StoreID  string
	StoreURL string
}

// PageCursor selects a listing page. Page is used by ByCount platforms,
// Next by ByCursor platforms; the zero value requests the first page.
type PageCursor struct {
	Page int
	Next string
}

// Platform is the port an adapter implements for one external platform
type Platform interface {
	Code() PlatformCode
	// NewSession binds the adapter to one store and one credential source.
	// A session lives for a single sync invocation.
	NewSession(store StoreConnection, creds CredentialSource) Session
}

// Session performs authenticated reads against one store.
// On a 401 the session refreshes its credentials exactly once and retries.
type Session interface {
	ListCategories(ctx context.Context) ([]ExternalCategory, error)
	ListProducts(ctx context.Context, cursor PageCursor) (*ProductPage, error)
	ListOrders(ctx context.Context, cursor PageCursor) (*OrderPage, error)
	// GetOrder returns ErrUpstreamNotFound when the order no longer exists.
	GetOrder(ctx context.Context, externalID string) (*ExternalOrder, error)
	// Credentials returns the current (possibly refreshed) credential source.
	Credentials() CredentialSource
}

// Registry resolves platform adapters by code
type Registry interface {
	Get(code PlatformCode) (Platform, error)
}

// TokenRefresher exchanges a refresh token for a new token set
type TokenRefresher interface {
	Refresh(ctx context.Context, platform PlatformCode, refreshToken string) (*TokenSet, error)
}

// TokenSet is the result of an OAuth token exchange
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
