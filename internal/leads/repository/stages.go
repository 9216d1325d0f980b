package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrStageNotFound is returned when a stage or pipeline lookup yields no row.
var ErrStageNotFound = errors.New("stage not found")

type Pipeline struct {
	ID       int64
	TenantID *int64 // nil means universal: a template pipeline shared across tenants
	Name     string
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

const stageColumns = `id, pipeline_id, name, stage_key, position, color, is_final`

func scanStage(row pgx.Row) (Stage, error) {
	var stage Stage
	err := row.Scan(
		&stage.ID,
		&stage.PipelineID,
		&stage.Name,
		&stage.StageKey,
		&stage.Position,
		&stage.Color,
		&stage.IsFinal,
	)
	return stage, err
}

func (r *Repository) GetStage(ctx context.Context, stageID int64) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+` FROM pipeline_stages WHERE id = $1
	`, stageID)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

func (r *Repository) GetPipeline(ctx context.Context, pipelineID int64) (Pipeline, error) {
	var pipeline Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name FROM pipelines WHERE id = $1
	`, pipelineID).Scan(&pipeline.ID, &pipeline.TenantID, &pipeline.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, ErrStageNotFound
		}
		return Pipeline{}, fmt.Errorf("get pipeline: %w", err)
	}
	return pipeline, nil
}

// FindDefaultPipeline returns the tenant's oldest pipeline, which inbound
// channel leads land in.
func (r *Repository) FindDefaultPipeline(ctx context.Context, tenantID int64) (Pipeline, error) {
	var pipeline Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name FROM pipelines
		WHERE tenant_id = $1
		ORDER BY id ASC
		LIMIT 1
	`, tenantID).Scan(&pipeline.ID, &pipeline.TenantID, &pipeline.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, ErrStageNotFound
		}
		return Pipeline{}, fmt.Errorf("find default pipeline: %w", err)
	}
	return pipeline, nil
}

// FindStageByKey looks for a stage within a pipeline by exact stage key.
func (r *Repository) FindStageByKey(ctx context.Context, pipelineID int64, stageKey string) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE pipeline_id = $1 AND stage_key = $2
		ORDER BY position ASC
		LIMIT 1
	`, pipelineID, stageKey)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("find stage by key: %w", err)
	}
	return stage, nil
}

// FindStageByName looks for a stage within a pipeline by case-insensitive name.
func (r *Repository) FindStageByName(ctx context.Context, pipelineID int64, name string) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE pipeline_id = $1 AND lower(name) = lower($2)
		ORDER BY position ASC
		LIMIT 1
	`, pipelineID, name)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("find stage by name: %w", err)
	}
	return stage, nil
}

// FindFirstStage returns the lowest-positioned stage of a pipeline.
func (r *Repository) FindFirstStage(ctx context.Context, pipelineID int64) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE pipeline_id = $1
		ORDER BY position ASC
		LIMIT 1
	`, pipelineID)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("find first stage: %w", err)
	}
	return stage, nil
}

// CloneStageFallbackName labels cloned stages whose source has a blank name.
const CloneStageFallbackName = "Etapa"

type CloneStageParams struct {
	PipelineID int64
	Name       string
	StageKey   *string
	Color      string
}

// CloneStage creates a stage in the target pipeline at the next free position.
//
// Concurrency: two requests can race to clone the same missing equivalent.
// When a stage key is present, a conflict-free upsert against the partial
// unique index on (pipeline_id, stage_key) makes the clone idempotent: the
// loser of the race gets the winner's row back. Key-less clones serialize on
// an advisory transaction lock keyed by pipeline and lowercased name, then
// re-check for the name before inserting.
func (r *Repository) CloneStage(ctx context.Context, params CloneStageParams) (Stage, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = CloneStageFallbackName
	}

	if params.StageKey != nil {
		return r.cloneStageByKey(ctx, params.PipelineID, name, *params.StageKey, params.Color)
	}
	return r.cloneStageByName(ctx, params.PipelineID, name, params.Color)
}

func (r *Repository) cloneStageByKey(ctx context.Context, pipelineID int64, name, stageKey, color string) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_stages (pipeline_id, name, stage_key, position, color)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM pipeline_stages WHERE pipeline_id = $1),
			$4
		)
		ON CONFLICT (pipeline_id, stage_key) WHERE stage_key IS NOT NULL
		DO UPDATE SET stage_key = EXCLUDED.stage_key
		RETURNING `+stageColumns,
		pipelineID, name, stageKey, color,
	)

	stage, err := scanStage(row)
	if err != nil {
		return Stage{}, fmt.Errorf("clone stage: %w", err)
	}
	return stage, nil
}

func (r *Repository) cloneStageByName(ctx context.Context, pipelineID int64, name, color string) (Stage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Stage{}, fmt.Errorf("clone stage: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.DatabaseError("stage_clone_rollback", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || lower($2), 0))
	`, pipelineID, name); err != nil {
		return Stage{}, fmt.Errorf("clone stage lock: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM pipeline_stages
		WHERE pipeline_id = $1 AND lower(name) = lower($2)
		ORDER BY position ASC
		LIMIT 1
	`, pipelineID, name)

	stage, err := scanStage(row)
	if err == nil {
		// Another request created it while we waited for the lock.
		if err := tx.Commit(ctx); err != nil {
			return Stage{}, fmt.Errorf("clone stage: %w", err)
		}
		return stage, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, fmt.Errorf("clone stage: %w", err)
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO pipeline_stages (pipeline_id, name, position, color)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM pipeline_stages WHERE pipeline_id = $1),
			$3
		)
		RETURNING `+stageColumns,
		pipelineID, name, color,
	)

	stage, err = scanStage(row)
	if err != nil {
		return Stage{}, fmt.Errorf("clone stage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Stage{}, fmt.Errorf("clone stage: %w", err)
	}
	return stage, nil
}
