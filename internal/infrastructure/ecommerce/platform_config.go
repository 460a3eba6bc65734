package ecommerce

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // Store timezones resolve in minimal images

	"github.com/souq/backend/internal/infrastructure/config"
)

const (
	// DefaultCurrency is used when a payload carries no currency
	DefaultCurrency = "SAR"
	// DefaultPageSize is the listing page size when none is configured
	DefaultPageSize = 50
	// maxPageSize is the largest page size either platform accepts
	maxPageSize = 100
)

// Errors for adapter configuration
var (
	ErrConfigMissingBaseURL = errors.New("ecommerce: api base url is required")
	ErrConfigInvalidBaseURL = errors.New("ecommerce: api base url is invalid")
)

// AdapterConfig holds the settings one platform adapter needs
type AdapterConfig struct {
	// APIBaseURL is the root of the platform's merchant API
	APIBaseURL string
	// PageSize is the listing page size
	PageSize int
	// DefaultCurrency fills in payloads without a currency
	DefaultCurrency string
	// StoreLocation is the timezone used for timestamps without an offset
	StoreLocation string
}

// AdapterConfigFrom converts a platforms.<code> config section
func AdapterConfigFrom(p *config.PlatformConfig) *AdapterConfig {
	return &AdapterConfig{
		APIBaseURL: p.APIBaseURL,
		PageSize:   p.PageSize,
	}
}

// Validate validates the configuration and fills defaults
func (c *AdapterConfig) Validate() error {
	if c.APIBaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrConfigInvalidBaseURL, c.APIBaseURL)
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = DefaultCurrency
	}
	if c.StoreLocation == "" {
		c.StoreLocation = "Asia/Riyadh"
	}
	return nil
}

func (c *AdapterConfig) baseURL() *url.URL {
	u, _ := url.Parse(c.APIBaseURL)
	return u
}

// location resolves StoreLocation, falling back to UTC for unknown names
func (c *AdapterConfig) location() *time.Location {
	loc, err := time.LoadLocation(c.StoreLocation)
	if err != nil {
		return time.UTC
	}
	return loc
}
