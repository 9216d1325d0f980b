// Package repository provides the aggregate queries behind the dashboard.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TenantTimezone returns the tenant's IANA timezone for day boundaries.
func (r *Repository) TenantTimezone(ctx context.Context, tenantID int64) (string, error) {
	var tz string
	err := r.pool.QueryRow(ctx,
		`SELECT timezone FROM tenants WHERE id = $1`, tenantID,
	).Scan(&tz)
	if err != nil {
		return "", fmt.Errorf("tenant timezone: %w", err)
	}
	return tz, nil
}

// StageCount is the number of leads sitting in one stage.
type StageCount struct {
	StageID   int64  `json:"stageId"`
	StageName string `json:"stageName"`
	Position  int    `json:"position"`
	Count     int64  `json:"count"`
}

// LeadsPerStage counts leads grouped by their current stage, in pipeline
// order. Stages with zero leads are included so the funnel renders complete.
func (r *Repository) LeadsPerStage(ctx context.Context, tenantID int64) ([]StageCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ps.id, ps.name, ps.position, COUNT(l.id)
		FROM pipeline_stages ps
		JOIN pipelines p ON p.id = ps.pipeline_id
		LEFT JOIN leads l ON l.stage_id = ps.id AND l.tenant_id = $1
		WHERE p.tenant_id = $1
		GROUP BY ps.id, ps.name, ps.position
		ORDER BY ps.pipeline_id, ps.position`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("leads per stage: %w", err)
	}
	defer rows.Close()

	var out []StageCount
	for rows.Next() {
		var sc StageCount
		if err := rows.Scan(&sc.StageID, &sc.StageName, &sc.Position, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// NewLeadsSince counts leads created at or after the given instant.
func (r *Repository) NewLeadsSince(ctx context.Context, tenantID int64, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads
		WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("new leads since: %w", err)
	}
	return count, nil
}

// BookingsBetween counts non-cancelled bookings starting inside the window.
func (r *Repository) BookingsBetween(ctx context.Context, tenantID int64, from, to time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE tenant_id = $1 AND status <> 'cancelled'
		  AND starts_at >= $2 AND starts_at < $3`,
		tenantID, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("bookings between: %w", err)
	}
	return count, nil
}

// MessagesSince counts messages in either direction since the given instant.
func (r *Repository) MessagesSince(ctx context.Context, tenantID int64, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE tenant_id = $1 AND sent_at >= $2`,
		tenantID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("messages since: %w", err)
	}
	return count, nil
}
