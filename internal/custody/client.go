package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/yachttime/qbconnect/internal/domain"
)

// Compile-time interface assertion.
var _ Custodian = (*Client)(nil)

// Client calls the custody service over HTTP, forwarding the caller's
// bearer credential so the custody side can scope the key material.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a custody client against the given endpoint URL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Encrypt asks the custody service to seal a token pair.
func (c *Client) Encrypt(ctx context.Context, bearer string, pair domain.TokenPair) (string, error) {
	payload := map[string]any{
		"action": "encrypt",
		"data": map[string]string{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
		},
	}
	var out struct {
		EncryptedSession string `json:"encrypted_session"`
	}
	if err := c.post(ctx, bearer, payload, &out); err != nil {
		return "", err
	}
	if out.EncryptedSession == "" {
		return "", fmt.Errorf("custody encrypt: empty session")
	}
	return out.EncryptedSession, nil
}

// Decrypt asks the custody service to open a session blob.
func (c *Client) Decrypt(ctx context.Context, bearer, encryptedSession string) (domain.TokenPair, error) {
	payload := map[string]any{
		"action": "decrypt",
		"data":   map[string]string{"encrypted_session": encryptedSession},
	}
	var out domain.TokenPair
	if err := c.post(ctx, bearer, payload, &out); err != nil {
		return domain.TokenPair{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, bearer string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode custody request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build custody request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call custody service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("custody service returned status %d: %s", resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode custody response: %w", err)
	}
	return nil
}
