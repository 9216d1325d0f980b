// Package service implements conversation ingestion from the Evolution
// webhook and outbound messaging through the gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conviaq_backend/internal/conversations/repository"
	"conviaq_backend/internal/conversations/transport"
	"conviaq_backend/internal/events"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/phone"
)

// Store is the data access surface of the conversations service.
type Store interface {
	GetChannelByInstance(ctx context.Context, instanceName string) (repository.Channel, error)
	GetChannelByID(ctx context.Context, channelID int64) (repository.Channel, error)
	GetChannelByTenant(ctx context.Context, tenantID int64) (repository.Channel, error)
	SetChannelStatus(ctx context.Context, channelID int64, status string) error
	UpsertConversation(ctx context.Context, tenantID, channelID int64, remoteJID string, contactName *string, inbound bool) (repository.Conversation, error)
	GetConversation(ctx context.Context, conversationID, tenantID int64) (repository.Conversation, error)
	ListConversations(ctx context.Context, tenantID int64, limit, offset int) ([]repository.Conversation, error)
	MarkRead(ctx context.Context, conversationID, tenantID int64) error
	LinkLead(ctx context.Context, conversationID, tenantID, leadID int64) error
	CreateMessage(ctx context.Context, params repository.CreateMessageParams) (repository.Message, bool, error)
	ListMessages(ctx context.Context, conversationID, tenantID int64, limit, offset int) ([]repository.Message, error)
}

// Sender pushes outbound text through the gateway and manages the pairing
// lifecycle of an instance.
type Sender interface {
	Enabled() bool
	SendText(ctx context.Context, instanceName, number, text string) (string, error)
	Connect(ctx context.Context, instanceName string) (string, error)
	ConnectionState(ctx context.Context, instanceName string) (string, error)
}

// MediaStore archives webhook media payloads. Nil disables archiving.
type MediaStore interface {
	UploadMedia(ctx context.Context, tenantID int64, contentType string, size int64, body io.Reader) (string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// LeadCreator opens a lead for a first-contact conversation.
type LeadCreator interface {
	CreateInboundLead(ctx context.Context, tenantID int64, name, phoneNumber string) (int64, error)
}

type Service struct {
	store  Store
	sender Sender
	media  MediaStore
	leads  LeadCreator
	bus    events.Bus
	log    *logger.Logger
	http   *http.Client
}

func New(store Store, sender Sender, media MediaStore, leads LeadCreator, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		sender: sender,
		media:  media,
		leads:  leads,
		bus:    bus,
		log:    log,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// HandleWebhook processes one gateway event. Unknown event types and group
// chats are acknowledged and dropped; webhook redeliveries are deduplicated
// by gateway message id.
func (s *Service) HandleWebhook(ctx context.Context, instanceName string, payload transport.WebhookPayload) error {
	channel, err := s.store.GetChannelByInstance(ctx, instanceName)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return apperr.NotFound("unknown instance")
		}
		return err
	}

	switch payload.Event {
	case "messages.upsert":
		return s.handleMessage(ctx, channel, payload.Data)
	case "connection.update":
		return s.handleConnectionUpdate(ctx, channel, payload.Data)
	default:
		s.log.WebhookEvent(instanceName, payload.Event, false, "unhandled event")
		return nil
	}
}

// channelStatus maps a raw gateway connection state ("open", "connecting",
// "close") onto the stored channel vocabulary. Anything but an open session
// counts as disconnected.
func channelStatus(state string) string {
	if state == "open" {
		return "connected"
	}
	return "disconnected"
}

func (s *Service) handleConnectionUpdate(ctx context.Context, channel repository.Channel, data transport.WebhookData) error {
	if err := s.store.SetChannelStatus(ctx, channel.ID, channelStatus(data.State)); err != nil {
		return err
	}
	s.log.WebhookEvent(channel.InstanceName, "connection.update", true, "")
	return nil
}

func (s *Service) handleMessage(ctx context.Context, channel repository.Channel, data transport.WebhookData) error {
	remoteJID := data.Key.RemoteJID
	if !strings.HasSuffix(remoteJID, "@s.whatsapp.net") {
		// Group and broadcast chats are out of scope.
		return nil
	}

	inbound := !data.Key.FromMe
	var contactName *string
	if inbound && data.PushName != "" {
		contactName = &data.PushName
	}

	conversation, err := s.store.UpsertConversation(ctx, channel.TenantID, channel.ID, remoteJID, contactName, inbound)
	if err != nil {
		return err
	}

	direction := repository.DirectionOutbound
	if inbound {
		direction = repository.DirectionInbound
	}

	params := repository.CreateMessageParams{
		ConversationID: conversation.ID,
		TenantID:       channel.TenantID,
		Direction:      direction,
		Body:           data.Message.Conversation,
	}
	if data.Key.ID != "" {
		params.GatewayID = &data.Key.ID
	}
	if data.MessageTimestamp > 0 {
		params.SentAt = time.Unix(data.MessageTimestamp, 0)
	}
	if data.MediaURL != "" {
		s.attachMedia(ctx, channel.TenantID, data, &params)
	}

	message, created, err := s.store.CreateMessage(ctx, params)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if inbound && conversation.LeadID == nil && s.leads != nil {
		s.openLead(ctx, conversation, data.PushName)
	}

	if inbound {
		s.bus.Publish(ctx, events.MessageReceived{
			BaseEvent:      events.NewBaseEvent(),
			TenantID:       channel.TenantID,
			ConversationID: conversation.ID,
			MessageID:      message.ID,
			RemoteJID:      remoteJID,
			HasMedia:       message.MediaKey != nil,
		})
	}
	return nil
}

// attachMedia downloads the gateway media and archives it. Failures degrade
// to a text-only message.
func (s *Service) attachMedia(ctx context.Context, tenantID int64, data transport.WebhookData, params *repository.CreateMessageParams) {
	if s.media == nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, data.MediaURL, nil)
	if err != nil {
		s.log.Error("media request build failed", "url", data.MediaURL, "error", err)
		return
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Error("media download failed", "url", data.MediaURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("media download failed", "url", data.MediaURL, "status", resp.StatusCode)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if data.MediaType != "" {
		contentType = data.MediaType
	}

	key, err := s.media.UploadMedia(ctx, tenantID, contentType, resp.ContentLength, resp.Body)
	if err != nil {
		s.log.Error("media archive failed", "error", err)
		return
	}

	params.MediaKey = &key
	if contentType != "" {
		params.MediaType = &contentType
	}
}

func (s *Service) openLead(ctx context.Context, conversation repository.Conversation, pushName string) {
	name := pushName
	if name == "" {
		name = phone.FromWhatsAppJID(conversation.RemoteJID)
	}

	leadID, err := s.leads.CreateInboundLead(ctx, conversation.TenantID, name, phone.FromWhatsAppJID(conversation.RemoteJID))
	if err != nil {
		s.log.Error("inbound lead creation failed",
			"tenantId", conversation.TenantID, "conversationId", conversation.ID, "error", err)
		return
	}

	if err := s.store.LinkLead(ctx, conversation.ID, conversation.TenantID, leadID); err != nil {
		s.log.Error("lead link failed", "conversationId", conversation.ID, "leadId", leadID, "error", err)
	}
}

// List returns the tenant's conversations, most recent first.
func (s *Service) List(ctx context.Context, tenantID int64, limit, offset int) ([]transport.ConversationResponse, error) {
	conversations, err := s.store.ListConversations(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]transport.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		items = append(items, transport.ToConversationResponse(c, phone.FromWhatsAppJID(c.RemoteJID)))
	}
	return items, nil
}

// Messages returns a conversation's messages and clears its unread counter.
func (s *Service) Messages(ctx context.Context, conversationID, tenantID int64, limit, offset int) ([]transport.MessageResponse, error) {
	if _, err := s.store.GetConversation(ctx, conversationID, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, conversationID, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkRead(ctx, conversationID, tenantID); err != nil {
		s.log.Error("mark read failed", "conversationId", conversationID, "error", err)
	}

	items := make([]transport.MessageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, transport.ToMessageResponse(m, s.mediaURL(ctx, m)))
	}
	return items, nil
}

func (s *Service) mediaURL(ctx context.Context, m repository.Message) *string {
	if m.MediaKey == nil || s.media == nil {
		return nil
	}
	url, err := s.media.PresignedURL(ctx, *m.MediaKey, 15*time.Minute)
	if err != nil {
		s.log.Error("media presign failed", "key", *m.MediaKey, "error", err)
		return nil
	}
	return &url
}

// Send delivers an outbound text message and records it.
func (s *Service) Send(ctx context.Context, conversationID, tenantID int64, body string) (transport.MessageResponse, error) {
	if s.sender == nil || !s.sender.Enabled() {
		return transport.MessageResponse{}, apperr.Validation("whatsapp gateway not configured")
	}

	conversation, err := s.store.GetConversation(ctx, conversationID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.MessageResponse{}, apperr.NotFound("conversation not found")
		}
		return transport.MessageResponse{}, err
	}

	channel, err := s.store.GetChannelByID(ctx, conversation.ChannelID)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	number := phone.FromWhatsAppJID(conversation.RemoteJID)
	gatewayID, err := s.sender.SendText(ctx, channel.InstanceName, number, body)
	if err != nil {
		return transport.MessageResponse{}, apperr.Wrap(apperr.KindInternal, "message delivery failed", fmt.Errorf("send text: %w", err))
	}

	params := repository.CreateMessageParams{
		ConversationID: conversation.ID,
		TenantID:       tenantID,
		Direction:      repository.DirectionOutbound,
		Body:           body,
	}
	if gatewayID != "" {
		params.GatewayID = &gatewayID
	}

	message, _, err := s.store.CreateMessage(ctx, params)
	if err != nil {
		return transport.MessageResponse{}, err
	}
	return transport.ToMessageResponse(message, nil), nil
}

// ChannelStatus returns the tenant's gateway channel. When the gateway is
// reachable the stored status is refreshed from the live connection state, so
// the dashboard sees a disconnect even if the webhook update was missed.
func (s *Service) ChannelStatus(ctx context.Context, tenantID int64) (transport.ChannelResponse, error) {
	channel, err := s.store.GetChannelByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return transport.ChannelResponse{}, apperr.NotFound("tenant has no WhatsApp channel")
		}
		return transport.ChannelResponse{}, err
	}

	if s.sender.Enabled() {
		state, err := s.sender.ConnectionState(ctx, channel.InstanceName)
		if err != nil {
			s.log.Warn("connection state check failed",
				"instance", channel.InstanceName, "error", err)
		} else if state != "" {
			if status := channelStatus(state); status != channel.Status {
				if err := s.store.SetChannelStatus(ctx, channel.ID, status); err != nil {
					s.log.DatabaseError("update channel status", err)
				} else {
					channel.Status = status
				}
			}
		}
	}

	return transport.ToChannelResponse(channel), nil
}

// ConnectChannel asks the gateway for a fresh pairing QR for the tenant's
// instance. The channel stays in its current status until the gateway
// reports the result through the connection.update webhook.
func (s *Service) ConnectChannel(ctx context.Context, tenantID int64) (transport.ConnectChannelResponse, error) {
	channel, err := s.store.GetChannelByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return transport.ConnectChannelResponse{}, apperr.NotFound("tenant has no WhatsApp channel")
		}
		return transport.ConnectChannelResponse{}, err
	}

	if !s.sender.Enabled() {
		return transport.ConnectChannelResponse{}, apperr.Conflict("WhatsApp gateway is not configured")
	}

	qr, err := s.sender.Connect(ctx, channel.InstanceName)
	if err != nil {
		return transport.ConnectChannelResponse{}, apperr.Wrap(apperr.KindInternal, "gateway connect failed",
			fmt.Errorf("connect instance %s: %w", channel.InstanceName, err))
	}

	return transport.ConnectChannelResponse{
		Channel: transport.ToChannelResponse(channel),
		QRCode:  qr,
	}, nil
}
