package domain

import "time"

// Connection is the durable record of a company's QuickBooks link.
// It carries metadata only; raw OAuth tokens are never written to it.
type Connection struct {
	ID             int64
	CompanyID      int64
	RealmID        string
	QBCompanyName  string
	TokenExpiresAt time.Time
	IsActive       bool
	CreatedBy      string
	ConnectedAt    time.Time
	UpdatedAt      time.Time
}

// TokenPair holds the raw OAuth token values for a connection. Instances
// live only on a request's stack between the provider call and custody
// encryption; they must never reach a repository.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
