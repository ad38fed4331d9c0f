package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	qbdomain "github.com/yachttime/qbconnect/internal/domain/quickbooks"
)

// QuickBooks Online API bases per environment.
const (
	ProductionAPIBaseURL = "https://quickbooks.api.intuit.com"
	SandboxAPIBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
)

// ErrInvalidGrant marks a token-endpoint rejection whose body carries the
// invalid_grant signature: the authorization code was expired or already
// used, or the refresh grant was revoked.
var ErrInvalidGrant = errors.New("invalid grant")

// UpstreamError wraps a non-2xx provider response, preserving the raw body
// so operators can see what Intuit actually said.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("quickbooks %s failed with status %d: %s", e.Operation, e.Status, e.Body)
}

// APIBaseURLFor maps a configured environment name to the API base.
func APIBaseURLFor(environment string) string {
	if environment == "sandbox" {
		return SandboxAPIBaseURL
	}
	return ProductionAPIBaseURL
}

// Client talks to the QuickBooks OAuth and accounting endpoints.
type Client struct {
	resolver     *Resolver
	apiBaseURL   string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient builds a provider client. The resolver supplies OAuth endpoint
// URLs; apiBaseURL addresses the accounting API (company info).
func NewClient(resolver *Resolver, apiBaseURL, clientID, clientSecret string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		resolver:     resolver,
		apiBaseURL:   strings.TrimSuffix(apiBaseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Endpoints exposes the resolver for URL construction by callers.
func (c *Client) Endpoints(ctx context.Context) qbdomain.EndpointSet {
	return c.resolver.Endpoints(ctx)
}

// ExchangeCode swaps an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (qbdomain.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.postToken(ctx, "token exchange", form)
}

// Refresh mints a new token pair from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (qbdomain.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, "token refresh", form)
}

func (c *Client) postToken(ctx context.Context, operation string, form url.Values) (qbdomain.TokenResponse, error) {
	endpoint := c.resolver.Endpoints(ctx).TokenEndpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return qbdomain.TokenResponse{}, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return qbdomain.TokenResponse{}, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log().Warn("quickbooks token endpoint rejected request",
			zap.String("operation", operation), zap.Int("status", resp.StatusCode))
		if strings.Contains(string(body), "invalid_grant") {
			return qbdomain.TokenResponse{}, fmt.Errorf("%s: %w", operation, ErrInvalidGrant)
		}
		return qbdomain.TokenResponse{}, &UpstreamError{Operation: operation, Status: resp.StatusCode, Body: string(body)}
	}

	var payload qbdomain.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return qbdomain.TokenResponse{}, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return payload, nil
}

// CompanyInfo fetches the display name of the connected QuickBooks company.
func (c *Client) CompanyInfo(ctx context.Context, accessToken, realmID string) (qbdomain.CompanyInfo, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s?minorversion=65", c.apiBaseURL, realmID, realmID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return qbdomain.CompanyInfo{}, fmt.Errorf("build company info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return qbdomain.CompanyInfo{}, fmt.Errorf("fetch company info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return qbdomain.CompanyInfo{}, &UpstreamError{Operation: "company info", Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		CompanyInfo struct {
			CompanyName string `json:"CompanyName"`
			Country     string `json:"Country"`
		} `json:"CompanyInfo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return qbdomain.CompanyInfo{}, fmt.Errorf("decode company info: %w", err)
	}
	return qbdomain.CompanyInfo{
		CompanyName: payload.CompanyInfo.CompanyName,
		Country:     payload.CompanyInfo.Country,
	}, nil
}

// Revoke invalidates a token (access or refresh) at the provider. Used on
// disconnect so the grant does not linger after the caller discards it.
func (c *Client) Revoke(ctx context.Context, token string) error {
	endpoint := c.resolver.Endpoints(ctx).RevocationEndpoint

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("encode revocation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Operation: "token revocation", Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func (c *Client) log() *zap.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return zap.L()
}
