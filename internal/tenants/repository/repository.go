// Package repository provides pgx data access for tenants and provisioning.
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

var (
	ErrNotFound       = errors.New("tenant not found")
	ErrDuplicateSlug  = errors.New("slug already taken")
	ErrDuplicateEmail = errors.New("email already registered")
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

type Tenant struct {
	ID           int64
	Slug         string
	BusinessName string
	Status       string
	Timezone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const tenantColumns = `id, slug, business_name, status, timezone, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.BusinessName, &t.Status, &t.Timezone, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("scan tenant: %w", err)
	}
	return t, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID int64) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID))
}

func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var items []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// SetStatus flips a tenant between active and suspended.
func (r *Repository) SetStatus(ctx context.Context, tenantID int64, status string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		UPDATE tenants SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+tenantColumns,
		tenantID, status))
}

// Stats is the superadmin console summary for one tenant.
type Stats struct {
	TenantID      int64
	Users         int64
	Leads         int64
	Conversations int64
	Bookings      int64
}

func (r *Repository) GetStats(ctx context.Context, tenantID int64) (Stats, error) {
	stats := Stats{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM leads WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM conversations WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM bookings WHERE tenant_id = $1)`,
		tenantID,
	).Scan(&stats.Users, &stats.Leads, &stats.Conversations, &stats.Bookings)
	if err != nil {
		return Stats{}, fmt.Errorf("tenant stats: %w", err)
	}
	return stats, nil
}
