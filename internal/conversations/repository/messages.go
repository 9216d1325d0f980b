package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Message struct {
	ID             int64
	ConversationID int64
	TenantID       int64
	Direction      string
	GatewayID      *string
	Body           string
	MediaKey       *string
	MediaType      *string
	SentAt         time.Time
	CreatedAt      time.Time
}

const messageColumns = `id, conversation_id, tenant_id, direction, gateway_id, body, media_key, media_type, sent_at, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.TenantID, &m.Direction, &m.GatewayID,
		&m.Body, &m.MediaKey, &m.MediaType, &m.SentAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

type CreateMessageParams struct {
	ConversationID int64
	TenantID       int64
	Direction      string
	GatewayID      *string
	Body           string
	MediaKey       *string
	MediaType      *string
	SentAt         time.Time
}

// CreateMessage inserts one message. Gateway ids deduplicate webhook
// redeliveries: the partial unique index on (tenant_id, gateway_id) makes the
// insert a no-op for a known gateway id, and the stored row is returned
// instead. Concurrent redeliveries therefore cannot insert twice.
func (r *Repository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, bool, error) {
	sentAt := params.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, tenant_id, direction, gateway_id, body, media_key, media_type, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, gateway_id) WHERE gateway_id IS NOT NULL
		DO NOTHING
		RETURNING `+messageColumns,
		params.ConversationID, params.TenantID, params.Direction, params.GatewayID,
		params.Body, params.MediaKey, params.MediaType, sentAt))
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Message{}, false, err
	}

	// DO NOTHING returns no row; the message was inserted by an earlier
	// delivery. GatewayID is always set here, a nil one cannot conflict.
	existing, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE tenant_id = $1 AND gateway_id = $2`,
		params.TenantID, *params.GatewayID))
	if err != nil {
		return Message{}, false, fmt.Errorf("load deduplicated message: %w", err)
	}
	return existing, false, nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID, tenantID int64, limit, offset int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND tenant_id = $2
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4`,
		conversationID, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
