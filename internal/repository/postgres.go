package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yachttime/qbconnect/internal/domain"
)

// Compile-time interface assertions.
var (
	_ ConnectionRepository   = (*PostgresConnectionRepo)(nil)
	_ ProfileRepository      = (*PostgresProfileRepo)(nil)
	_ NotificationRepository = (*PostgresNotificationRepo)(nil)
)

const connectionColumns = `id, company_id, realm_id, qb_company_name, token_expires_at, is_active, created_by, connected_at, updated_at`

// PostgresConnectionRepo implements ConnectionRepository on pgx.
type PostgresConnectionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresConnectionRepo(db *pgxpool.Pool) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

func (r *PostgresConnectionRepo) GetActiveByCompany(ctx context.Context, companyID int64) (domain.Connection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM quickbooks_connections WHERE company_id = $1 AND is_active`, companyID)
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("get active connection: %w", err)
	}
	return conn, nil
}

func (r *PostgresConnectionRepo) GetByRealmID(ctx context.Context, realmID string) (domain.Connection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM quickbooks_connections WHERE realm_id = $1`, realmID)
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("get connection by realm: %w", err)
	}
	return conn, nil
}

const insertConnectionSQL = `INSERT INTO quickbooks_connections
(company_id, realm_id, qb_company_name, token_expires_at, is_active, created_by, connected_at, updated_at)
VALUES ($1, $2, $3, $4, true, $5, now(), now())
RETURNING ` + connectionColumns

func (r *PostgresConnectionRepo) Insert(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	row := r.db.QueryRow(ctx, insertConnectionSQL,
		conn.CompanyID,
		conn.RealmID,
		conn.QBCompanyName,
		conn.TokenExpiresAt,
		conn.CreatedBy,
	)
	inserted, err := scanConnection(row)
	if err != nil {
		return domain.Connection{}, fmt.Errorf("insert connection: %w", err)
	}
	return inserted, nil
}

const reconnectSQL = `UPDATE quickbooks_connections SET
company_id = $2, qb_company_name = $3, token_expires_at = $4, is_active = true,
created_by = $5, connected_at = now(), updated_at = now()
WHERE realm_id = $1
RETURNING ` + connectionColumns

func (r *PostgresConnectionRepo) UpdateForReconnect(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	row := r.db.QueryRow(ctx, reconnectSQL,
		conn.RealmID,
		conn.CompanyID,
		conn.QBCompanyName,
		conn.TokenExpiresAt,
		conn.CreatedBy,
	)
	updated, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("reconnect connection: %w", err)
	}
	return updated, nil
}

func (r *PostgresConnectionRepo) DeactivateForCompany(ctx context.Context, companyID int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE quickbooks_connections SET is_active = false, updated_at = now() WHERE company_id = $1 AND is_active`,
		companyID); err != nil {
		return fmt.Errorf("deactivate connections: %w", err)
	}
	return nil
}

func (r *PostgresConnectionRepo) Deactivate(ctx context.Context, connectionID int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE quickbooks_connections SET is_active = false, updated_at = now() WHERE id = $1`,
		connectionID); err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	return nil
}

func (r *PostgresConnectionRepo) UpdateExpiry(ctx context.Context, connectionID int64, conn domain.Connection) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE quickbooks_connections SET token_expires_at = $2, updated_at = now() WHERE id = $1`,
		connectionID, conn.TokenExpiresAt); err != nil {
		return fmt.Errorf("update connection expiry: %w", err)
	}
	return nil
}

// PostgresProfileRepo implements ProfileRepository.
type PostgresProfileRepo struct {
	db *pgxpool.Pool
}

func NewPostgresProfileRepo(db *pgxpool.Pool) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

func (r *PostgresProfileRepo) GetByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx,
		`SELECT user_id, company_id, email, full_name, role, created_at, updated_at FROM profiles WHERE user_id = $1`,
		userID).Scan(&p.UserID, &p.CompanyID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// PostgresNotificationRepo implements NotificationRepository.
type PostgresNotificationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresNotificationRepo(db *pgxpool.Pool) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

func (r *PostgresNotificationRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO admin_notifications (id, company_id, type, title, message, connection_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.CompanyID, n.Type, n.Title, n.Message, n.ConnectionID, n.CreatedAt); err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func scanConnection(row pgx.Row) (domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&c.RealmID,
		&c.QBCompanyName,
		&c.TokenExpiresAt,
		&c.IsActive,
		&c.CreatedBy,
		&c.ConnectedAt,
		&c.UpdatedAt,
	)
	return c, err
}
