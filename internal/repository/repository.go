package repository

import (
	"context"
	"errors"

	"github.com/yachttime/qbconnect/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ConnectionRepository is the durable connection-metadata store.
type ConnectionRepository interface {
	GetActiveByCompany(ctx context.Context, companyID int64) (domain.Connection, error)
	GetByRealmID(ctx context.Context, realmID string) (domain.Connection, error)
	// Insert creates a new connection row. The store enforces at most one
	// active row per company with a partial unique index; a violation means
	// a concurrent connect won.
	Insert(ctx context.Context, conn domain.Connection) (domain.Connection, error)
	// UpdateForReconnect repoints an existing realm row at a company,
	// reactivating it and refreshing its metadata.
	UpdateForReconnect(ctx context.Context, conn domain.Connection) (domain.Connection, error)
	// DeactivateForCompany clears every active row for a company.
	DeactivateForCompany(ctx context.Context, companyID int64) error
	Deactivate(ctx context.Context, connectionID int64) error
	UpdateExpiry(ctx context.Context, connectionID int64, conn domain.Connection) error
}

// ProfileRepository resolves authenticated callers to company-scoped profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (domain.Profile, error)
}

// NotificationRepository inserts administrator-facing alerts.
type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
}
