// Package transport defines request and response DTOs for the tenants API.
package transport

import (
	"time"

	"conviaq_backend/internal/tenants/repository"
)

type ProvisionRequest struct {
	Slug          string `json:"slug" validate:"required,min=3,max=40,lowercase,excludesall= "`
	BusinessName  string `json:"businessName" validate:"required,min=2,max=120"`
	Timezone      string `json:"timezone" validate:"omitempty,max=60"`
	OwnerName     string `json:"ownerName" validate:"required,min=2,max=120"`
	OwnerEmail    string `json:"ownerEmail" validate:"required,email"`
	OwnerPassword string `json:"ownerPassword" validate:"required,min=10,max=72"`
}

type TenantResponse struct {
	ID           int64     `json:"id"`
	Slug         string    `json:"slug"`
	BusinessName string    `json:"businessName"`
	Status       string    `json:"status"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ProvisionResponse struct {
	Tenant     TenantResponse `json:"tenant"`
	PipelineID int64          `json:"pipelineId"`
	OwnerID    int64          `json:"ownerId"`
	Channel    string         `json:"channel"`
}

type StatsResponse struct {
	TenantID      int64 `json:"tenantId"`
	Users         int64 `json:"users"`
	Leads         int64 `json:"leads"`
	Conversations int64 `json:"conversations"`
	Bookings      int64 `json:"bookings"`
}

func ToTenantResponse(t repository.Tenant) TenantResponse {
	return TenantResponse{
		ID:           t.ID,
		Slug:         t.Slug,
		BusinessName: t.BusinessName,
		Status:       t.Status,
		Timezone:     t.Timezone,
		CreatedAt:    t.CreatedAt,
	}
}

func ToStatsResponse(s repository.Stats) StatsResponse {
	return StatsResponse{
		TenantID:      s.TenantID,
		Users:         s.Users,
		Leads:         s.Leads,
		Conversations: s.Conversations,
		Bookings:      s.Bookings,
	}
}
