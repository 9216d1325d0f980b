// Package repository provides pgx data access for conversations, messages
// and WhatsApp channels.
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

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrChannelNotFound = errors.New("channel not found")
)

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Channel is a tenant's WhatsApp gateway binding.
type Channel struct {
	ID           int64
	TenantID     int64
	Kind         string
	InstanceName string
	Status       string
}

// GetChannelByInstance resolves the tenant behind a gateway instance name.
// Webhook routing depends on this lookup.
func (r *Repository) GetChannelByInstance(ctx context.Context, instanceName string) (Channel, error) {
	var ch Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, kind, instance_name, status
		FROM channels WHERE instance_name = $1`,
		instanceName,
	).Scan(&ch.ID, &ch.TenantID, &ch.Kind, &ch.InstanceName, &ch.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// GetChannelByTenant returns a tenant's WhatsApp channel. Background jobs
// that message customers resolve the gateway instance this way.
func (r *Repository) GetChannelByTenant(ctx context.Context, tenantID int64) (Channel, error) {
	var ch Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, kind, instance_name, status
		FROM channels WHERE tenant_id = $1 AND kind = 'whatsapp'
		ORDER BY id LIMIT 1`,
		tenantID,
	).Scan(&ch.ID, &ch.TenantID, &ch.Kind, &ch.InstanceName, &ch.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// GetChannelByID loads a channel row. Outbound sends resolve the gateway
// instance through this.
func (r *Repository) GetChannelByID(ctx context.Context, channelID int64) (Channel, error) {
	var ch Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, kind, instance_name, status
		FROM channels WHERE id = $1`,
		channelID,
	).Scan(&ch.ID, &ch.TenantID, &ch.Kind, &ch.InstanceName, &ch.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrChannelNotFound
		}
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// SetChannelStatus records gateway connection state changes.
func (r *Repository) SetChannelStatus(ctx context.Context, channelID int64, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE channels SET status = $2 WHERE id = $1`, channelID, status)
	if err != nil {
		return fmt.Errorf("set channel status: %w", err)
	}
	return nil
}

type Conversation struct {
	ID            int64
	TenantID      int64
	ChannelID     int64
	RemoteJID     string
	ContactName   *string
	LeadID        *int64
	LastMessageAt time.Time
	UnreadCount   int
	CreatedAt     time.Time
}

const conversationColumns = `id, tenant_id, channel_id, remote_jid, contact_name, lead_id, last_message_at, unread_count, created_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID, &c.TenantID, &c.ChannelID, &c.RemoteJID, &c.ContactName,
		&c.LeadID, &c.LastMessageAt, &c.UnreadCount, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	return c, nil
}

// UpsertConversation finds or creates the conversation for a remote JID and
// bumps its last activity. Inbound messages also raise the unread counter.
func (r *Repository) UpsertConversation(ctx context.Context, tenantID, channelID int64, remoteJID string, contactName *string, inbound bool) (Conversation, error) {
	unreadDelta := 0
	if inbound {
		unreadDelta = 1
	}

	return scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO conversations (tenant_id, channel_id, remote_jid, contact_name, last_message_at, unread_count)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (tenant_id, remote_jid) DO UPDATE SET
			last_message_at = NOW(),
			unread_count = conversations.unread_count + $5,
			contact_name = COALESCE(EXCLUDED.contact_name, conversations.contact_name)
		RETURNING `+conversationColumns,
		tenantID, channelID, remoteJID, contactName, unreadDelta))
}

func (r *Repository) GetConversation(ctx context.Context, conversationID, tenantID int64) (Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1 AND tenant_id = $2`,
		conversationID, tenantID))
}

func (r *Repository) ListConversations(ctx context.Context, tenantID int64, limit, offset int) ([]Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE tenant_id = $1
		ORDER BY last_message_at DESC
		LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var items []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// MarkRead clears the unread counter.
func (r *Repository) MarkRead(ctx context.Context, conversationID, tenantID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET unread_count = 0
		WHERE id = $1 AND tenant_id = $2`,
		conversationID, tenantID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkLead attaches a lead to the conversation.
func (r *Repository) LinkLead(ctx context.Context, conversationID, tenantID, leadID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET lead_id = $3
		WHERE id = $1 AND tenant_id = $2`,
		conversationID, tenantID, leadID)
	if err != nil {
		return fmt.Errorf("link lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
