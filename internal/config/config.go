package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	ServiceName       string
	TelemetryEndpoint string
	TelemetryInsecure bool

	// QuickBooks OAuth application credentials.
	QBClientID     string
	QBClientSecret string
	QBRedirectURI  string
	QBEnvironment  string
	QBScopes       []string

	// Shared secret used to verify caller bearer tokens (HS256).
	AuthJWTSecret string

	// Token custody service.
	CustodyURL    string
	CustodySecret string

	HTTPClientTimeout time.Duration
}

// Load reads configuration from environment variables with sane defaults.
// Required keys are reported by name so a misdeployment is diagnosable.
func Load() (Config, error) {
	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServiceName:       getEnv("SERVICE_NAME", "qbconnect"),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		QBClientID:        os.Getenv("QB_CLIENT_ID"),
		QBClientSecret:    os.Getenv("QB_CLIENT_SECRET"),
		QBRedirectURI:     os.Getenv("QB_REDIRECT_URI"),
		QBEnvironment:     getEnv("QB_ENVIRONMENT", "production"),
		QBScopes:          getList("QB_SCOPES", []string{"com.intuit.quickbooks.accounting"}),
		AuthJWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		CustodyURL:        os.Getenv("CUSTODY_URL"),
		CustodySecret:     os.Getenv("CUSTODY_SECRET"),
		HTTPClientTimeout: getDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
	}

	var missing []string
	for _, required := range []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"QB_CLIENT_ID", cfg.QBClientID},
		{"QB_CLIENT_SECRET", cfg.QBClientSecret},
		{"QB_REDIRECT_URI", cfg.QBRedirectURI},
		{"AUTH_JWT_SECRET", cfg.AuthJWTSecret},
		{"CUSTODY_SECRET", cfg.CustodySecret},
	} {
		if required.value == "" {
			missing = append(missing, required.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if cfg.CustodyURL == "" {
		cfg.CustodyURL = fmt.Sprintf("http://localhost:%s/token-custody", cfg.HTTPPort)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
