package quickbooks

import "time"

// EndpointSet holds the provider endpoints resolved from the Intuit
// discovery document, or the fixed fallback when discovery fails.
type EndpointSet struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

// TokenResponse models the provider token endpoint payload for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
}

// ExpiresAt converts the relative expires_in offset into a timestamp.
func (t TokenResponse) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// CompanyInfo is the subset of the QuickBooks company-info resource this
// service reads.
type CompanyInfo struct {
	CompanyName string
	Country     string
}
