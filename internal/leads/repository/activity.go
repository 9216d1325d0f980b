package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ActorType constants identify the category of entity that produced an
// activity log entry.
const (
	ActorTypeUser   = "User"   // Human user acting through the CRM UI
	ActorTypeSystem = "System" // Internal process (webhook intake, scheduler)
)

// EventType constants identify the nature of an activity log entry.
const (
	EventTypeStageChange    = "stage_change"
	EventTypeBookingCreated = "booking_created"
	EventTypeReminderSent   = "reminder_sent"
)

// EventTitle constants are the human-readable labels shown in the activity feed.
const (
	EventTitleStageUpdated   = "Etapa actualizada"
	EventTitleBookingCreated = "Reserva creada"
	EventTitleReminderSent   = "Recordatorio enviado"
)

// ActivityEntry is a write-once audit record of lead activity. Rows are never
// updated or deleted.
type ActivityEntry struct {
	ID        int64
	LeadID    int64
	TenantID  int64
	ActorType string
	EventType string
	Title     string
	Metadata  map[string]any
	CreatedAt time.Time
}

type CreateActivityParams struct {
	LeadID    int64
	TenantID  int64
	ActorType string
	EventType string
	Title     string
	Metadata  map[string]any
}

// CreateActivity appends one activity log entry.
func (r *Repository) CreateActivity(ctx context.Context, params CreateActivityParams) (ActivityEntry, error) {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return ActivityEntry{}, err
	}

	var entry ActivityEntry
	// metadata is excluded from RETURNING: we already hold params.Metadata as
	// a Go value, and re-scanning the stored JSONB would add a redundant
	// unmarshal on every insert.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO lead_activity_log (lead_id, tenant_id, actor_type, event_type, title, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, lead_id, tenant_id, actor_type, event_type, title, created_at
	`, params.LeadID, params.TenantID, params.ActorType, params.EventType, params.Title, metadataJSON).Scan(
		&entry.ID,
		&entry.LeadID,
		&entry.TenantID,
		&entry.ActorType,
		&entry.EventType,
		&entry.Title,
		&entry.CreatedAt,
	)
	if err != nil {
		return ActivityEntry{}, fmt.Errorf("create activity entry: %w", err)
	}

	entry.Metadata = params.Metadata
	return entry, nil
}

// ListActivity returns activity entries for a lead, newest first.
func (r *Repository) ListActivity(ctx context.Context, leadID, tenantID int64) ([]ActivityEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, tenant_id, actor_type, event_type, title, metadata, created_at
		FROM lead_activity_log
		WHERE lead_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
	`, leadID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEntry, 0)
	for rows.Next() {
		var entry ActivityEntry
		var rawMetadata []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.LeadID,
			&entry.TenantID,
			&entry.ActorType,
			&entry.EventType,
			&entry.Title,
			&rawMetadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &entry.Metadata)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return items, nil
}
