package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://qb:qb@localhost:5432/qb")
	t.Setenv("QB_CLIENT_ID", "client-id")
	t.Setenv("QB_CLIENT_SECRET", "client-secret")
	t.Setenv("QB_REDIRECT_URI", "https://app.test/quickbooks/callback")
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("CUSTODY_SECRET", "custody-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "qbconnect", cfg.ServiceName)
	require.Equal(t, "production", cfg.QBEnvironment)
	require.Equal(t, []string{"com.intuit.quickbooks.accounting"}, cfg.QBScopes)
	require.Equal(t, 30*time.Second, cfg.HTTPClientTimeout)
	require.Equal(t, "http://localhost:8080/token-custody", cfg.CustodyURL)
}

func TestLoadReportsMissingKeysByName(t *testing.T) {
	setRequired(t)
	t.Setenv("QB_CLIENT_SECRET", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "QB_CLIENT_SECRET")
	require.Contains(t, err.Error(), "AUTH_JWT_SECRET")
	require.NotContains(t, err.Error(), "QB_CLIENT_ID")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("QB_ENVIRONMENT", "sandbox")
	t.Setenv("QB_SCOPES", "com.intuit.quickbooks.accounting, com.intuit.quickbooks.payment")
	t.Setenv("HTTP_CLIENT_TIMEOUT", "5s")
	t.Setenv("CUSTODY_URL", "http://custody.internal/token-custody")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sandbox", cfg.QBEnvironment)
	require.Equal(t, []string{"com.intuit.quickbooks.accounting", "com.intuit.quickbooks.payment"}, cfg.QBScopes)
	require.Equal(t, 5*time.Second, cfg.HTTPClientTimeout)
	require.Equal(t, "http://custody.internal/token-custody", cfg.CustodyURL)
}
