package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// defaultStages is the funnel every new tenant starts with. Keys follow the
// shared stage vocabulary so cross-pipeline moves map instead of cloning.
var defaultStages = []struct {
	Name    string
	Key     string
	Color   string
	IsFinal bool
}{
	{"Nuevo", "new", "#3B82F6", false},
	{"Contactado", "contacted", "#8B5CF6", false},
	{"Calificado", "qualified", "#F59E0B", false},
	{"Propuesta", "proposal", "#F97316", false},
	{"Negociación", "negotiation", "#EC4899", false},
	{"Ganado", "won", "#22C55E", true},
	{"Perdido", "lost", "#6B7280", true},
}

// defaultWashServices seeds the autolavado catalog. Prices are in cents.
var defaultWashServices = []struct {
	Name         string
	PriceCents   int64
	DurationMins int
}{
	{"Lavado básico", 15000, 30},
	{"Lavado completo", 25000, 45},
	{"Lavado premium con encerado", 45000, 90},
}

type ProvisionParams struct {
	Slug          string
	BusinessName  string
	Timezone      string
	OwnerName     string
	OwnerEmail    string
	OwnerPassHash string
}

type ProvisionResult struct {
	Tenant     Tenant
	PipelineID int64
	OwnerID    int64
	Channel    string
}

// Provision creates everything a working tenant needs in one transaction:
// the tenant row with its settings, the default pipeline and stages, the
// wash service catalog with its booking configuration, the owner account and
// a disconnected WhatsApp channel placeholder. Either the tenant comes up
// whole or not at all.
func (r *Repository) Provision(ctx context.Context, params ProvisionParams) (ProvisionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.DatabaseError("provision_rollback", rbErr)
		}
	}()

	var result ProvisionResult

	row := tx.QueryRow(ctx, `
		INSERT INTO tenants (slug, business_name, status, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tenantColumns,
		params.Slug, params.BusinessName, StatusActive, params.Timezone)
	result.Tenant, err = scanTenant(row)
	if err != nil {
		return ProvisionResult{}, classifyProvisionError(err)
	}
	tenantID := result.Tenant.ID

	_, err = tx.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, locale, currency)
		VALUES ($1, 'es-MX', 'MXN')`,
		tenantID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: settings: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO pipelines (tenant_id, name)
		VALUES ($1, 'Ventas')
		RETURNING id`,
		tenantID,
	).Scan(&result.PipelineID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: pipeline: %w", err)
	}

	for position, stage := range defaultStages {
		_, err = tx.Exec(ctx, `
			INSERT INTO pipeline_stages (pipeline_id, name, stage_key, position, color, is_final)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			result.PipelineID, stage.Name, stage.Key, position, stage.Color, stage.IsFinal)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("provision: stage %s: %w", stage.Key, err)
		}
	}

	for _, svc := range defaultWashServices {
		_, err = tx.Exec(ctx, `
			INSERT INTO wash_services (tenant_id, name, price_cents, duration_minutes, is_active)
			VALUES ($1, $2, $3, $4, TRUE)`,
			tenantID, svc.Name, svc.PriceCents, svc.DurationMins)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("provision: wash service: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_configs (tenant_id, open_time, close_time, slot_minutes, bays)
		VALUES ($1, '09:00', '19:00', 30, 2)`,
		tenantID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: booking config: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (tenant_id, name, email, password_hash, roles, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id`,
		tenantID, params.OwnerName, params.OwnerEmail, params.OwnerPassHash, []string{"admin"},
	).Scan(&result.OwnerID)
	if err != nil {
		return ProvisionResult{}, classifyProvisionError(err)
	}

	result.Channel = fmt.Sprintf("conviaq-%s", params.Slug)
	_, err = tx.Exec(ctx, `
		INSERT INTO channels (tenant_id, kind, instance_name, status)
		VALUES ($1, 'whatsapp', $2, 'disconnected')`,
		tenantID, result.Channel)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ProvisionResult{}, fmt.Errorf("provision: commit: %w", err)
	}
	return result, nil
}

// classifyProvisionError maps unique violations to the sentinel the service
// layer turns into a conflict response.
func classifyProvisionError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "tenants_slug_key":
			return ErrDuplicateSlug
		case "users_email_key":
			return ErrDuplicateEmail
		}
	}
	return fmt.Errorf("provision: %w", err)
}
