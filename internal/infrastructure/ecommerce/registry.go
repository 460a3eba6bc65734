package ecommerce

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/infrastructure/config"
)

// Registry holds the configured platform adapters and their webhook endpoints.
// It implements integration.Registry and integration.WebhookEndpoints.
type Registry struct {
	platforms map[integration.PlatformCode]integration.Platform
	endpoints map[integration.PlatformCode]*integration.WebhookEndpoint
}

var (
	_ integration.Registry         = (*Registry)(nil)
	_ integration.WebhookEndpoints = (*Registry)(nil)
)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		platforms: make(map[integration.PlatformCode]integration.Platform),
		endpoints: make(map[integration.PlatformCode]*integration.WebhookEndpoint),
	}
}

// Register adds a platform adapter
func (r *Registry) Register(p integration.Platform) {
	r.platforms[p.Code()] = p
}

// RegisterWebhook adds the webhook endpoint of a platform
func (r *Registry) RegisterWebhook(code integration.PlatformCode, endpoint *integration.WebhookEndpoint) {
	r.endpoints[code] = endpoint
}

// Get returns the adapter for code
func (r *Registry) Get(code integration.PlatformCode) (integration.Platform, error) {
	if !code.IsValid() {
		return nil, fmt.Errorf("%w: %q", integration.ErrInvalidPlatformCode, code)
	}
	p, ok := r.platforms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotConfigured, code)
	}
	return p, nil
}

// Endpoint returns the webhook settings for code
func (r *Registry) Endpoint(code integration.PlatformCode) (*integration.WebhookEndpoint, error) {
	if !code.IsValid() {
		return nil, fmt.Errorf("%w: %q", integration.ErrInvalidPlatformCode, code)
	}
	e, ok := r.endpoints[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotConfigured, code)
	}
	return e, nil
}

// Codes returns the registered platform codes in sorted order
func (r *Registry) Codes() []integration.PlatformCode {
	codes := make([]integration.PlatformCode, 0, len(r.platforms))
	for code := range r.platforms {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// BuildRegistry wires an adapter, normalizer and signature verifier for every
// enabled platform. All adapters share one resilient client.
func BuildRegistry(cfg *config.Config, logger *zap.Logger) (*Registry, *OAuthRefresher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := NewResilientClient(ClientConfigFrom(&cfg.HTTPClient), logger.Named("http_client"))
	retry := RetryPolicyFrom(&cfg.HTTPClient, logger.Named("retry"))
	registry := NewRegistry()

	if p := cfg.Platforms.Salla; p.Enabled {
		adapter, err := NewSallaAdapter(AdapterConfigFrom(&p), client, retry, logger.Named("salla"))
		if err != nil {
			return nil, nil, err
		}
		endpoint, err := webhookEndpoint(&p, adapter.WebhookNormalizer())
		if err != nil {
			return nil, nil, fmt.Errorf("salla: %w", err)
		}
		registry.Register(adapter)
		registry.RegisterWebhook(integration.PlatformSalla, endpoint)
	}

	if p := cfg.Platforms.Zid; p.Enabled {
		adapter, err := NewZidAdapter(AdapterConfigFrom(&p), client, retry, logger.Named("zid"))
		if err != nil {
			return nil, nil, err
		}
		endpoint, err := webhookEndpoint(&p, adapter.WebhookNormalizer())
		if err != nil {
			return nil, nil, fmt.Errorf("zid: %w", err)
		}
		registry.Register(adapter)
		registry.RegisterWebhook(integration.PlatformZid, endpoint)
	}

	refresher := NewOAuthRefresher(client, OAuthConfigsFrom(&cfg.Platforms), logger.Named("oauth"))
	return registry, refresher, nil
}

func webhookEndpoint(p *config.PlatformConfig, normalizer *PayloadNormalizer) (*integration.WebhookEndpoint, error) {
	verifier, err := NewSignatureVerifier(SignatureMode(p.SignatureMode), p.WebhookSecret, p.WebhookSignatureHeader)
	if err != nil {
		return nil, err
	}
	return &integration.WebhookEndpoint{
		Verifier:         verifier,
		Normalizer:       normalizer,
		DeliveryIDHeader: p.DeliveryIDHeader,
	}, nil
}
