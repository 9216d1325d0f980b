// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"conviaq_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created.
type LeadCreated struct {
	BaseEvent
	LeadID     int64  `json:"leadId"`
	TenantID   int64  `json:"tenantId"`
	PipelineID int64  `json:"pipelineId"`
	StageID    int64  `json:"stageId"`
	Source     string `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStageChanged is published after a stage move commits.
type LeadStageChanged struct {
	BaseEvent
	LeadID       int64  `json:"leadId"`
	TenantID     int64  `json:"tenantId"`
	FromStageID  int64  `json:"fromStageId"`
	ToStageID    int64  `json:"toStageId"`
	ActorID      int64  `json:"actorId"`
	Source       string `json:"source"`
	Resolution   string `json:"resolution"` // direct, mapped or cloned
	ClonedStage  bool   `json:"clonedStage"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// =============================================================================
// Conversations Domain Events
// =============================================================================

// MessageReceived is published when the gateway webhook delivers an inbound message.
type MessageReceived struct {
	BaseEvent
	TenantID       int64  `json:"tenantId"`
	ConversationID int64  `json:"conversationId"`
	MessageID      int64  `json:"messageId"`
	RemoteJID      string `json:"remoteJid"`
	HasMedia       bool   `json:"hasMedia"`
}

func (e MessageReceived) EventName() string { return "conversations.message.received" }

// =============================================================================
// Bookings Domain Events
// =============================================================================

// BookingCreated is published when an autolavado booking is confirmed.
type BookingCreated struct {
	BaseEvent
	BookingID int64 `json:"bookingId"`
	TenantID  int64 `json:"tenantId"`
}

func (e BookingCreated) EventName() string { return "bookings.booking.created" }

// =============================================================================
// Tenants Domain Events
// =============================================================================

// TenantProvisioned is published when a provisioning bundle commits.
type TenantProvisioned struct {
	BaseEvent
	TenantID   int64  `json:"tenantId"`
	OwnerID    int64  `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
	Name       string `json:"name"`
}

func (e TenantProvisioned) EventName() string { return "tenants.tenant.provisioned" }
