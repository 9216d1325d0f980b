// Package repository provides pgx data access for user accounts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conviaq_backend/platform/logger"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

type User struct {
	ID           int64
	TenantID     int64
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

const userColumns = `id, tenant_id, name, email, password_hash, roles, is_active, last_login_at, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Roles, &u.IsActive, &u.LastLoginAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *Repository) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// TenantActive reports whether the user's tenant is allowed to sign in.
// Superadmin accounts live under the platform tenant, which is never suspended.
func (r *Repository) TenantActive(ctx context.Context, tenantID int64) (bool, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM tenants WHERE id = $1`, tenantID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("tenant status: %w", err)
	}
	return status == "active", nil
}
