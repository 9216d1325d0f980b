package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrStageNotFound = errors.New("stage not found")

func (r *Repository) ListStages(ctx context.Context, pipelineID int64) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pipeline_id, name, stage_key, position, color, is_final
		FROM pipeline_stages
		WHERE pipeline_id = $1
		ORDER BY position, id`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var items []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Name, &s.StageKey, &s.Position, &s.Color, &s.IsFinal); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type CreateStageParams struct {
	PipelineID int64
	Name       string
	StageKey   *string
	Color      string
	IsFinal    bool
}

// CreateStage appends a stage at the next free position.
func (r *Repository) CreateStage(ctx context.Context, params CreateStageParams) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_stages (pipeline_id, name, stage_key, position, color, is_final)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM pipeline_stages WHERE pipeline_id = $1),
			$4, $5
		)
		RETURNING id, pipeline_id, name, stage_key, position, color, is_final`,
		params.PipelineID, params.Name, params.StageKey, params.Color, params.IsFinal,
	).Scan(&s.ID, &s.PipelineID, &s.Name, &s.StageKey, &s.Position, &s.Color, &s.IsFinal)
	if err != nil {
		return Stage{}, fmt.Errorf("create stage: %w", err)
	}
	return s, nil
}

type UpdateStageParams struct {
	Name    *string
	Color   *string
	IsFinal *bool
}

func (r *Repository) UpdateStage(ctx context.Context, stageID int64, params UpdateStageParams) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		UPDATE pipeline_stages SET
			name = COALESCE($2, name),
			color = COALESCE($3, color),
			is_final = COALESCE($4, is_final)
		WHERE id = $1
		RETURNING id, pipeline_id, name, stage_key, position, color, is_final`,
		stageID, params.Name, params.Color, params.IsFinal,
	).Scan(&s.ID, &s.PipelineID, &s.Name, &s.StageKey, &s.Position, &s.Color, &s.IsFinal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		return Stage{}, fmt.Errorf("update stage: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteStage(ctx context.Context, stageID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pipeline_stages WHERE id = $1`, stageID)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

// CountStageLeads reports how many leads currently sit in the stage.
func (r *Repository) CountStageLeads(ctx context.Context, stageID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE stage_id = $1`, stageID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stage leads: %w", err)
	}
	return count, nil
}

// ReorderStages rewrites the position column for every listed stage in one
// transaction. Stage ids not belonging to the pipeline are ignored by the
// WHERE clause, so a stale reorder cannot move another pipeline's stages.
func (r *Repository) ReorderStages(ctx context.Context, pipelineID int64, orderedIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reorder stages: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.DatabaseError("stage_reorder_rollback", rbErr)
		}
	}()

	for position, stageID := range orderedIDs {
		_, err := tx.Exec(ctx, `
			UPDATE pipeline_stages SET position = $3
			WHERE id = $1 AND pipeline_id = $2`,
			stageID, pipelineID, position,
		)
		if err != nil {
			return fmt.Errorf("reorder stages: update %d: %w", stageID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reorder stages: commit: %w", err)
	}
	return nil
}
