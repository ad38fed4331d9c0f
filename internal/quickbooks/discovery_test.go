package quickbooks_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/quickbooks"
)

const discoveryDoc = `{
	"issuer": "https://issuer.test",
	"authorization_endpoint": "https://auth.test/oauth2",
	"token_endpoint": "https://token.test/tokens/bearer",
	"revocation_endpoint": "https://revoke.test/tokens/revoke",
	"userinfo_endpoint": "https://userinfo.test/openid_connect/userinfo"
}`

func TestResolverCachesDiscovery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(discoveryDoc))
	}))
	defer srv.Close()

	resolver := quickbooks.NewResolver(srv.URL, srv.Client(), zap.NewNop())

	ctx := context.Background()
	first := resolver.Endpoints(ctx)
	require.Equal(t, "https://auth.test/oauth2", first.AuthorizationEndpoint)
	require.Equal(t, "https://token.test/tokens/bearer", first.TokenEndpoint)
	require.Equal(t, "https://revoke.test/tokens/revoke", first.RevocationEndpoint)

	second := resolver.Endpoints(ctx)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), calls.Load(), "discovery document fetched once per process")
}

func TestResolverFallsBackOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := quickbooks.NewResolver(srv.URL, srv.Client(), zap.NewNop())

	endpoints := resolver.Endpoints(context.Background())
	require.Equal(t, quickbooks.FallbackEndpoints, endpoints)
}

func TestResolverFallbackIsNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(discoveryDoc))
	}))
	defer srv.Close()

	resolver := quickbooks.NewResolver(srv.URL, srv.Client(), zap.NewNop())

	ctx := context.Background()
	require.Equal(t, quickbooks.FallbackEndpoints, resolver.Endpoints(ctx))

	recovered := resolver.Endpoints(ctx)
	require.Equal(t, "https://auth.test/oauth2", recovered.AuthorizationEndpoint)
	require.Equal(t, int32(2), calls.Load())
}

func TestResolverFallsBackOnMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issuer": 12`))
	}))
	defer srv.Close()

	resolver := quickbooks.NewResolver(srv.URL, srv.Client(), zap.NewNop())
	require.Equal(t, quickbooks.FallbackEndpoints, resolver.Endpoints(context.Background()))
}

func TestDiscoveryURLFor(t *testing.T) {
	require.Equal(t, quickbooks.SandboxDiscoveryURL, quickbooks.DiscoveryURLFor("sandbox"))
	require.Equal(t, quickbooks.ProductionDiscoveryURL, quickbooks.DiscoveryURLFor("production"))
	require.Equal(t, quickbooks.ProductionDiscoveryURL, quickbooks.DiscoveryURLFor(""))
}
