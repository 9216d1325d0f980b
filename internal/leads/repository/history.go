package repository

import (
	"context"
	"fmt"
	"time"
)

// StageHistoryEntry records one stage transition. Rows are write-once facts:
// they are never updated or deleted, and a no-op move (same stage to itself)
// still produces an entry.
type StageHistoryEntry struct {
	ID          int64
	LeadID      int64
	FromStageID int64
	ToStageID   int64
	ActorID     int64
	Source      string
	Reason      *string
	CreatedAt   time.Time
}

// ListStageHistory returns a lead's transitions, newest first.
func (r *Repository) ListStageHistory(ctx context.Context, leadID, tenantID int64) ([]StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.id, h.lead_id, h.from_stage_id, h.to_stage_id, h.actor_id, h.source, h.reason, h.created_at
		FROM lead_stage_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.lead_id = $1 AND l.tenant_id = $2
		ORDER BY h.created_at DESC
	`, leadID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stage history: %w", err)
	}
	defer rows.Close()

	items := make([]StageHistoryEntry, 0)
	for rows.Next() {
		var entry StageHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.LeadID,
			&entry.FromStageID,
			&entry.ToStageID,
			&entry.ActorID,
			&entry.Source,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stage history: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage history: %w", err)
	}

	return items, nil
}
