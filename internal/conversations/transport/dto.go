// Package transport defines request and response DTOs for the conversations
// API and the Evolution webhook payload.
package transport

import (
	"time"

	"conviaq_backend/internal/conversations/repository"
)

// WebhookPayload is the subset of the Evolution webhook body the platform
// consumes. Unknown event types are acknowledged and dropped.
type WebhookPayload struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation string `json:"conversation"`
	} `json:"message"`
	MessageTimestamp int64  `json:"messageTimestamp"`
	MediaURL         string `json:"mediaUrl"`
	MediaType        string `json:"mediaType"`
	State            string `json:"state"`
}

type SendMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4096"`
}

type ConversationResponse struct {
	ID            int64     `json:"id"`
	RemoteJID     string    `json:"remoteJid"`
	Phone         string    `json:"phone"`
	ContactName   *string   `json:"contactName"`
	LeadID        *int64    `json:"leadId"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}

type MessageResponse struct {
	ID        int64     `json:"id"`
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	MediaURL  *string   `json:"mediaUrl"`
	MediaType *string   `json:"mediaType"`
	SentAt    time.Time `json:"sentAt"`
}

func ToConversationResponse(c repository.Conversation, phone string) ConversationResponse {
	return ConversationResponse{
		ID:            c.ID,
		RemoteJID:     c.RemoteJID,
		Phone:         phone,
		ContactName:   c.ContactName,
		LeadID:        c.LeadID,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
	}
}

type ChannelResponse struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	InstanceName string `json:"instanceName"`
	Status       string `json:"status"`
}

type ConnectChannelResponse struct {
	Channel ChannelResponse `json:"channel"`
	QRCode  string          `json:"qrCode"`
}

func ToChannelResponse(ch repository.Channel) ChannelResponse {
	return ChannelResponse{
		ID:           ch.ID,
		Kind:         ch.Kind,
		InstanceName: ch.InstanceName,
		Status:       ch.Status,
	}
}

func ToMessageResponse(m repository.Message, mediaURL *string) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Direction: m.Direction,
		Body:      m.Body,
		MediaURL:  mediaURL,
		MediaType: m.MediaType,
		SentAt:    m.SentAt,
	}
}
