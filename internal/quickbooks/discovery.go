package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/domain/quickbooks"
)

// Intuit publishes separate discovery documents per environment.
const (
	ProductionDiscoveryURL = "https://developer.api.intuit.com/.well-known/openid_configuration"
	SandboxDiscoveryURL    = "https://developer.api.intuit.com/.well-known/openid_sandbox_configuration"
)

// FallbackEndpoints is returned when the discovery document cannot be
// fetched or parsed. It is never cached, so a later call retries discovery.
var FallbackEndpoints = quickbooks.EndpointSet{
	Issuer:                "https://oauth.platform.intuit.com/op/v1",
	AuthorizationEndpoint: "https://appcenter.intuit.com/connect/oauth2",
	TokenEndpoint:         "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
	RevocationEndpoint:    "https://developer.api.intuit.com/v2/oauth2/tokens/revoke",
	UserinfoEndpoint:      "https://accounts.platform.intuit.com/v1/openid_connect/userinfo",
}

// DiscoveryURLFor maps a configured environment name to its discovery URL.
func DiscoveryURLFor(environment string) string {
	if environment == "sandbox" {
		return SandboxDiscoveryURL
	}
	return ProductionDiscoveryURL
}

// Resolver fetches the provider endpoint set once and caches it for the
// lifetime of the process. It never returns an error: any discovery
// failure yields the fallback set instead.
type Resolver struct {
	discoveryURL string
	client       *http.Client
	logger       *zap.Logger

	mu        sync.RWMutex
	endpoints *quickbooks.EndpointSet
}

// NewResolver creates a resolver against the given discovery document URL.
func NewResolver(discoveryURL string, client *http.Client, logger *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{discoveryURL: discoveryURL, client: client, logger: logger}
}

// Endpoints returns the cached endpoint set, fetching it on first use.
func (r *Resolver) Endpoints(ctx context.Context) quickbooks.EndpointSet {
	r.mu.RLock()
	if r.endpoints != nil {
		defer r.mu.RUnlock()
		return *r.endpoints
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoints != nil {
		return *r.endpoints
	}

	endpoints, err := r.fetch(ctx)
	if err != nil {
		r.log().Warn("quickbooks discovery failed, using fallback endpoints",
			zap.String("discovery_url", r.discoveryURL), zap.Error(err))
		return FallbackEndpoints
	}
	r.endpoints = &endpoints
	return endpoints
}

func (r *Resolver) fetch(ctx context.Context) (quickbooks.EndpointSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.discoveryURL, nil)
	if err != nil {
		return quickbooks.EndpointSet{}, fmt.Errorf("build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return quickbooks.EndpointSet{}, fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return quickbooks.EndpointSet{}, fmt.Errorf("discovery document returned status %d", resp.StatusCode)
	}

	var endpoints quickbooks.EndpointSet
	if err := json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return quickbooks.EndpointSet{}, fmt.Errorf("decode discovery document: %w", err)
	}
	if endpoints.AuthorizationEndpoint == "" || endpoints.TokenEndpoint == "" {
		return quickbooks.EndpointSet{}, fmt.Errorf("discovery document missing endpoints")
	}
	return endpoints, nil
}

func (r *Resolver) log() *zap.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return zap.L()
}
