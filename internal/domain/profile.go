package domain

import "time"

// Role values recognized by the authorization gate.
const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleOffice     = "office"
)

// Profile represents an authenticated platform user within a company.
type Profile struct {
	UserID    string
	CompanyID int64
	Email     string
	FullName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the profile may manage external integrations.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
