package service

import (
	"context"
	"testing"
	"time"

	"conviaq_backend/internal/conversations/repository"
	"conviaq_backend/internal/conversations/transport"
	"conviaq_backend/internal/events"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

type fakeStore struct {
	channels      map[string]repository.Channel
	conversations map[string]repository.Conversation
	messages      []repository.Message
	gatewayIDs    map[string]repository.Message
	linked        map[int64]int64
	statuses      map[int64]string
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels:      make(map[string]repository.Channel),
		conversations: make(map[string]repository.Conversation),
		gatewayIDs:    make(map[string]repository.Message),
		linked:        make(map[int64]int64),
		statuses:      make(map[int64]string),
		nextID:        500,
	}
}

func (f *fakeStore) GetChannelByInstance(ctx context.Context, instanceName string) (repository.Channel, error) {
	ch, ok := f.channels[instanceName]
	if !ok {
		return repository.Channel{}, repository.ErrChannelNotFound
	}
	return ch, nil
}

func (f *fakeStore) GetChannelByID(ctx context.Context, channelID int64) (repository.Channel, error) {
	for _, ch := range f.channels {
		if ch.ID == channelID {
			return ch, nil
		}
	}
	return repository.Channel{}, repository.ErrChannelNotFound
}

func (f *fakeStore) GetChannelByTenant(ctx context.Context, tenantID int64) (repository.Channel, error) {
	for _, ch := range f.channels {
		if ch.TenantID == tenantID {
			return ch, nil
		}
	}
	return repository.Channel{}, repository.ErrChannelNotFound
}

func (f *fakeStore) SetChannelStatus(ctx context.Context, channelID int64, status string) error {
	f.statuses[channelID] = status
	return nil
}

func (f *fakeStore) UpsertConversation(ctx context.Context, tenantID, channelID int64, remoteJID string, contactName *string, inbound bool) (repository.Conversation, error) {
	c, ok := f.conversations[remoteJID]
	if !ok {
		f.nextID++
		c = repository.Conversation{
			ID: f.nextID, TenantID: tenantID, ChannelID: channelID, RemoteJID: remoteJID,
		}
	}
	if contactName != nil {
		c.ContactName = contactName
	}
	if inbound {
		c.UnreadCount++
	}
	c.LastMessageAt = time.Now()
	f.conversations[remoteJID] = c
	return c, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID, tenantID int64) (repository.Conversation, error) {
	for _, c := range f.conversations {
		if c.ID == conversationID && c.TenantID == tenantID {
			return c, nil
		}
	}
	return repository.Conversation{}, repository.ErrNotFound
}

func (f *fakeStore) ListConversations(ctx context.Context, tenantID int64, limit, offset int) ([]repository.Conversation, error) {
	var items []repository.Conversation
	for _, c := range f.conversations {
		if c.TenantID == tenantID {
			items = append(items, c)
		}
	}
	return items, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, conversationID, tenantID int64) error {
	return nil
}

func (f *fakeStore) LinkLead(ctx context.Context, conversationID, tenantID, leadID int64) error {
	f.linked[conversationID] = leadID
	for jid, c := range f.conversations {
		if c.ID == conversationID {
			c.LeadID = &leadID
			f.conversations[jid] = c
		}
	}
	return nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, params repository.CreateMessageParams) (repository.Message, bool, error) {
	if params.GatewayID != nil {
		if existing, ok := f.gatewayIDs[*params.GatewayID]; ok {
			return existing, false, nil
		}
	}

	f.nextID++
	m := repository.Message{
		ID:             f.nextID,
		ConversationID: params.ConversationID,
		TenantID:       params.TenantID,
		Direction:      params.Direction,
		GatewayID:      params.GatewayID,
		Body:           params.Body,
		MediaKey:       params.MediaKey,
		MediaType:      params.MediaType,
		SentAt:         params.SentAt,
	}
	f.messages = append(f.messages, m)
	if params.GatewayID != nil {
		f.gatewayIDs[*params.GatewayID] = m
	}
	return m, true, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID, tenantID int64, limit, offset int) ([]repository.Message, error) {
	var items []repository.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.TenantID == tenantID {
			items = append(items, m)
		}
	}
	return items, nil
}

type fakeSender struct {
	enabled   bool
	sent      []string
	state     string
	connected []string
}

func (f *fakeSender) Enabled() bool { return f.enabled }

func (f *fakeSender) SendText(ctx context.Context, instanceName, number, text string) (string, error) {
	f.sent = append(f.sent, number+": "+text)
	return "GW-1", nil
}

func (f *fakeSender) Connect(ctx context.Context, instanceName string) (string, error) {
	f.connected = append(f.connected, instanceName)
	return "data:image/png;base64,QR", nil
}

func (f *fakeSender) ConnectionState(ctx context.Context, instanceName string) (string, error) {
	return f.state, nil
}

type fakeLeads struct {
	created []string
	nextID  int64
}

func (f *fakeLeads) CreateInboundLead(ctx context.Context, tenantID int64, name, phoneNumber string) (int64, error) {
	f.created = append(f.created, name)
	f.nextID++
	return 900 + f.nextID, nil
}

type spyBus struct {
	published []events.Event
}

func (b *spyBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}
func (b *spyBus) PublishSync(ctx context.Context, event events.Event) error { return nil }
func (b *spyBus) Subscribe(eventName string, handler events.Handler)        {}

func inboundPayload(id, body string) transport.WebhookPayload {
	var p transport.WebhookPayload
	p.Event = "messages.upsert"
	p.Data.Key.RemoteJID = "5215512345678@s.whatsapp.net"
	p.Data.Key.ID = id
	p.Data.PushName = "Carlos"
	p.Data.Message.Conversation = body
	p.Data.MessageTimestamp = time.Now().Unix()
	return p
}

func newTestService() (*Service, *fakeStore, *fakeLeads, *spyBus) {
	store := newFakeStore()
	store.channels["conviaq-sol"] = repository.Channel{
		ID: 3, TenantID: 1, Kind: "whatsapp", InstanceName: "conviaq-sol", Status: "connected",
	}
	leads := &fakeLeads{}
	bus := &spyBus{}
	svc := New(store, &fakeSender{enabled: true}, nil, leads, bus, logger.New("test"))
	return svc, store, leads, bus
}

func TestWebhookInboundCreatesConversationAndLead(t *testing.T) {
	svc, store, leads, bus := newTestService()

	err := svc.HandleWebhook(context.Background(), "conviaq-sol", inboundPayload("W1", "hola, quiero una cita"))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	if len(store.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(store.messages))
	}
	msg := store.messages[0]
	if msg.Direction != repository.DirectionInbound {
		t.Fatalf("direction = %q", msg.Direction)
	}
	if msg.Body != "hola, quiero una cita" {
		t.Fatalf("body = %q", msg.Body)
	}

	if len(leads.created) != 1 || leads.created[0] != "Carlos" {
		t.Fatalf("leads created = %v", leads.created)
	}
	if len(store.linked) != 1 {
		t.Fatalf("conversation not linked to lead: %v", store.linked)
	}

	if len(bus.published) != 1 {
		t.Fatalf("events = %d, want 1", len(bus.published))
	}
	if _, ok := bus.published[0].(events.MessageReceived); !ok {
		t.Fatalf("event type = %T", bus.published[0])
	}
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	svc, store, leads, _ := newTestService()
	ctx := context.Background()

	payload := inboundPayload("W1", "hola")
	if err := svc.HandleWebhook(ctx, "conviaq-sol", payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleWebhook(ctx, "conviaq-sol", payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if len(store.messages) != 1 {
		t.Fatalf("messages = %d, want 1 after redelivery", len(store.messages))
	}
	if len(leads.created) != 1 {
		t.Fatalf("leads = %d, want 1 after redelivery", len(leads.created))
	}
}

func TestWebhookSkipsGroupChats(t *testing.T) {
	svc, store, _, _ := newTestService()

	payload := inboundPayload("W2", "mensaje de grupo")
	payload.Data.Key.RemoteJID = "1234567890@g.us"

	if err := svc.HandleWebhook(context.Background(), "conviaq-sol", payload); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if len(store.messages) != 0 {
		t.Fatalf("group message must be dropped, got %d", len(store.messages))
	}
}

func TestWebhookUnknownInstance(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.HandleWebhook(context.Background(), "ghost", inboundPayload("W3", "hola"))
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestWebhookConnectionUpdate(t *testing.T) {
	svc, store, _, _ := newTestService()

	var payload transport.WebhookPayload
	payload.Event = "connection.update"
	payload.Data.State = "open"

	if err := svc.HandleWebhook(context.Background(), "conviaq-sol", payload); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if store.statuses[3] != "connected" {
		t.Fatalf("channel status = %q, want connected", store.statuses[3])
	}
}

func TestWebhookOutboundEchoDoesNotOpenLead(t *testing.T) {
	svc, store, leads, bus := newTestService()

	payload := inboundPayload("W4", "respuesta del negocio")
	payload.Data.Key.FromMe = true

	if err := svc.HandleWebhook(context.Background(), "conviaq-sol", payload); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if len(store.messages) != 1 || store.messages[0].Direction != repository.DirectionOutbound {
		t.Fatalf("messages = %+v", store.messages)
	}
	if len(leads.created) != 0 {
		t.Fatalf("outbound echo must not open a lead: %v", leads.created)
	}
	if len(bus.published) != 0 {
		t.Fatalf("outbound echo must not publish MessageReceived")
	}
}

func TestSendRecordsOutboundMessage(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	// Seed a conversation through the webhook.
	if err := svc.HandleWebhook(ctx, "conviaq-sol", inboundPayload("W5", "hola")); err != nil {
		t.Fatalf("seed webhook: %v", err)
	}
	conversation := store.conversations["5215512345678@s.whatsapp.net"]

	msg, err := svc.Send(ctx, conversation.ID, 1, "claro, ¿a qué hora?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Direction != repository.DirectionOutbound {
		t.Fatalf("direction = %q", msg.Direction)
	}
	if len(store.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(store.messages))
	}
	if store.messages[1].GatewayID == nil || *store.messages[1].GatewayID != "GW-1" {
		t.Fatalf("gateway id = %v", store.messages[1].GatewayID)
	}
}

func TestSendWithoutGateway(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeSender{enabled: false}, nil, nil, &spyBus{}, logger.New("test"))

	_, err := svc.Send(context.Background(), 1, 1, "hola")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation, err = %v", apperr.GetKind(err), err)
	}
}

func TestChannelStatusRefreshesFromGateway(t *testing.T) {
	store := newFakeStore()
	store.channels["conviaq-sol"] = repository.Channel{
		ID: 3, TenantID: 1, Kind: "whatsapp", InstanceName: "conviaq-sol", Status: "connected",
	}
	sender := &fakeSender{enabled: true, state: "close"}
	svc := New(store, sender, nil, nil, &spyBus{}, logger.New("test"))

	resp, err := svc.ChannelStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ChannelStatus: %v", err)
	}
	if resp.Status != "disconnected" {
		t.Fatalf("status = %q, want disconnected", resp.Status)
	}
	if store.statuses[3] != "disconnected" {
		t.Fatalf("stored status = %q, want disconnected", store.statuses[3])
	}
}

func TestChannelStatusKeepsConnectedForOpenSession(t *testing.T) {
	store := newFakeStore()
	store.channels["conviaq-sol"] = repository.Channel{
		ID: 3, TenantID: 1, Kind: "whatsapp", InstanceName: "conviaq-sol", Status: "connected",
	}
	sender := &fakeSender{enabled: true, state: "open"}
	svc := New(store, sender, nil, nil, &spyBus{}, logger.New("test"))

	resp, err := svc.ChannelStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ChannelStatus: %v", err)
	}
	if resp.Status != "connected" {
		t.Fatalf("status = %q, want connected", resp.Status)
	}
	if _, rewritten := store.statuses[3]; rewritten {
		t.Fatalf("stored status rewritten to %q on a matching state", store.statuses[3])
	}
}

func TestChannelStatusWithoutChannel(t *testing.T) {
	svc := New(newFakeStore(), &fakeSender{enabled: true}, nil, nil, &spyBus{}, logger.New("test"))

	_, err := svc.ChannelStatus(context.Background(), 42)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not found, err = %v", apperr.GetKind(err), err)
	}
}

func TestConnectChannelReturnsQR(t *testing.T) {
	store := newFakeStore()
	store.channels["conviaq-sol"] = repository.Channel{
		ID: 3, TenantID: 1, Kind: "whatsapp", InstanceName: "conviaq-sol", Status: "disconnected",
	}
	sender := &fakeSender{enabled: true}
	svc := New(store, sender, nil, nil, &spyBus{}, logger.New("test"))

	resp, err := svc.ConnectChannel(context.Background(), 1)
	if err != nil {
		t.Fatalf("ConnectChannel: %v", err)
	}
	if resp.QRCode == "" {
		t.Fatal("expected a QR code")
	}
	if len(sender.connected) != 1 || sender.connected[0] != "conviaq-sol" {
		t.Fatalf("connected = %v", sender.connected)
	}
}

func TestConnectChannelWithoutGateway(t *testing.T) {
	store := newFakeStore()
	store.channels["conviaq-sol"] = repository.Channel{
		ID: 3, TenantID: 1, Kind: "whatsapp", InstanceName: "conviaq-sol", Status: "disconnected",
	}
	svc := New(store, &fakeSender{enabled: false}, nil, nil, &spyBus{}, logger.New("test"))

	_, err := svc.ConnectChannel(context.Background(), 1)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict, err = %v", apperr.GetKind(err), err)
	}
}
