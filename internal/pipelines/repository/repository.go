// Package repository provides pgx data access for pipelines and their stages.
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

var ErrNotFound = errors.New("pipeline not found")

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Pipeline is a stage funnel. TenantID nil marks a universal pipeline shared
// across all tenants as a read-only template.
type Pipeline struct {
	ID        int64
	TenantID  *int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Stage struct {
	ID         int64
	PipelineID int64
	Name       string
	StageKey   *string
	Position   int
	Color      string
	IsFinal    bool
}

func (r *Repository) Create(ctx context.Context, tenantID *int64, name string) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pipelines (tenant_id, name)
		VALUES ($1, $2)
		RETURNING id, tenant_id, name, created_at, updated_at`,
		tenantID, name,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Pipeline{}, fmt.Errorf("create pipeline: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, pipelineID int64) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM pipelines WHERE id = $1`,
		pipelineID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, ErrNotFound
		}
		return Pipeline{}, fmt.Errorf("get pipeline: %w", err)
	}
	return p, nil
}

// ListForTenant returns the tenant's own pipelines plus the universal ones.
func (r *Repository) ListForTenant(ctx context.Context, tenantID int64) ([]Pipeline, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM pipelines
		WHERE tenant_id = $1 OR tenant_id IS NULL
		ORDER BY tenant_id NULLS LAST, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var items []Pipeline
	for rows.Next() {
		var p Pipeline
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *Repository) Rename(ctx context.Context, pipelineID int64, name string) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		UPDATE pipelines SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, tenant_id, name, created_at, updated_at`,
		pipelineID, name,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, ErrNotFound
		}
		return Pipeline{}, fmt.Errorf("rename pipeline: %w", err)
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, pipelineID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, pipelineID)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLeads reports how many leads reference the pipeline. Deleting a
// pipeline with leads is rejected at the service layer.
func (r *Repository) CountLeads(ctx context.Context, pipelineID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE pipeline_id = $1`, pipelineID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pipeline leads: %w", err)
	}
	return count, nil
}
