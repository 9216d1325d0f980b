package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conviaq_backend/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

type Lead struct {
	ID             int64
	TenantID       int64
	PipelineID     int64
	StageID        int64
	Name           string
	Phone          *string
	Email          *string
	DealValueCents int64
	AssignedUserID *int64
	Source         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const leadColumns = `
	id, tenant_id, pipeline_id, stage_id, name, phone, email,
	deal_value_cents, assigned_user_id, source, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID,
		&lead.TenantID,
		&lead.PipelineID,
		&lead.StageID,
		&lead.Name,
		&lead.Phone,
		&lead.Email,
		&lead.DealValueCents,
		&lead.AssignedUserID,
		&lead.Source,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	return lead, err
}

type CreateLeadParams struct {
	TenantID       int64
	PipelineID     int64
	StageID        int64
	Name           string
	Phone          *string
	Email          *string
	DealValueCents int64
	AssignedUserID *int64
	Source         *string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			tenant_id, pipeline_id, stage_id, name, phone, email,
			deal_value_cents, assigned_user_id, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+leadColumns,
		params.TenantID, params.PipelineID, params.StageID, params.Name, params.Phone, params.Email,
		params.DealValueCents, params.AssignedUserID, params.Source,
	)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID returns a lead scoped to a tenant. A lead belonging to another
// tenant is indistinguishable from a missing one.
func (r *Repository) GetByID(ctx context.Context, leadID, tenantID int64) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

type ListLeadsParams struct {
	TenantID   int64
	PipelineID *int64
	StageID    *int64
	Limit      int
	Offset     int
}

func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
		  AND ($2::bigint IS NULL OR pipeline_id = $2)
		  AND ($3::bigint IS NULL OR stage_id = $3)
		ORDER BY updated_at DESC
		LIMIT $4 OFFSET $5
	`, params.TenantID, params.PipelineID, params.StageID, limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	return items, nil
}

type UpdateLeadParams struct {
	Name           *string
	Phone          *string
	Email          *string
	DealValueCents *int64
	AssignedUserID *int64
}

func (r *Repository) Update(ctx context.Context, leadID, tenantID int64, params UpdateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			name = COALESCE($3, name),
			phone = COALESCE($4, phone),
			email = COALESCE($5, email),
			deal_value_cents = COALESCE($6, deal_value_cents),
			assigned_user_id = COALESCE($7, assigned_user_id),
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING`+leadColumns,
		leadID, tenantID,
		params.Name, params.Phone, params.Email, params.DealValueCents, params.AssignedUserID,
	)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("update lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) Delete(ctx context.Context, leadID, tenantID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND tenant_id = $2`, leadID, tenantID)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
