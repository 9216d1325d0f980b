package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type ApplyStageMoveParams struct {
	LeadID          int64
	TenantID        int64
	StageID         int64
	PreviousStageID int64
	ActorID         int64
	Source          string
	Reason          *string
	Metadata        map[string]any
}

// ApplyStageMove writes a stage transition atomically: the lead's stage
// pointer, one stage-history row, and one activity-log row commit together or
// not at all. There is no version check on the lead row; concurrent moves of
// the same lead race at the database and the last writer wins.
func (r *Repository) ApplyStageMove(ctx context.Context, params ApplyStageMoveParams) error {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}
	// A rollback failure after an error usually means the connection is stuck
	// mid-transaction; log it distinctly so operators can tell it apart from
	// the originating failure.
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.DatabaseError("stage_move_rollback", rbErr)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET stage_id = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3
	`, params.StageID, params.LeadID, params.TenantID)
	if err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_stage_history (lead_id, from_stage_id, to_stage_id, actor_id, source, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.PreviousStageID, params.StageID, params.ActorID, params.Source, params.Reason); err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_activity_log (lead_id, tenant_id, actor_type, event_type, title, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.TenantID, ActorTypeUser, EventTypeStageChange, EventTitleStageUpdated, metadataJSON); err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("apply stage move: %w", err)
	}
	return nil
}
