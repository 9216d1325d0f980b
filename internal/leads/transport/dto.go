// Package transport defines the request/response DTOs for the leads API.
package transport

import (
	"time"

	"conviaq_backend/internal/leads/repository"
)

type CreateLeadRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=200"`
	Phone          string  `json:"phone" validate:"omitempty,max=32"`
	Email          string  `json:"email" validate:"omitempty,email"`
	PipelineID     int64   `json:"pipelineId" validate:"required,gt=0"`
	StageID        int64   `json:"stageId" validate:"omitempty,gt=0"`
	DealValueCents int64   `json:"dealValueCents" validate:"gte=0"`
	Source         *string `json:"source" validate:"omitempty,max=64"`
}

type UpdateLeadRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=200"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Email          *string `json:"email" validate:"omitempty,email"`
	DealValueCents *int64  `json:"dealValueCents" validate:"omitempty,gte=0"`
	AssignedUserID *int64  `json:"assignedUserId" validate:"omitempty,gt=0"`
}

// MoveStageRequest is the body of PATCH /leads/:id/stage.
type MoveStageRequest struct {
	StageID int64   `json:"stageId" validate:"required,gt=0"`
	Reason  *string `json:"reason" validate:"omitempty,max=500"`
	Source  string  `json:"source" validate:"omitempty,max=64"`
}

type LeadResponse struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenantId"`
	PipelineID     int64     `json:"pipelineId"`
	StageID        int64     `json:"stageId"`
	Name           string    `json:"name"`
	Phone          *string   `json:"phone,omitempty"`
	Email          *string   `json:"email,omitempty"`
	DealValueCents int64     `json:"dealValueCents"`
	AssignedUserID *int64    `json:"assignedUserId,omitempty"`
	Source         *string   `json:"source,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:             lead.ID,
		TenantID:       lead.TenantID,
		PipelineID:     lead.PipelineID,
		StageID:        lead.StageID,
		Name:           lead.Name,
		Phone:          lead.Phone,
		Email:          lead.Email,
		DealValueCents: lead.DealValueCents,
		AssignedUserID: lead.AssignedUserID,
		Source:         lead.Source,
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}
}

type StageHistoryResponse struct {
	ID          int64     `json:"id"`
	FromStageID int64     `json:"fromStageId"`
	ToStageID   int64     `json:"toStageId"`
	ActorID     int64     `json:"actorId"`
	Source      string    `json:"source"`
	Reason      *string   `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToStageHistoryResponse(entry repository.StageHistoryEntry) StageHistoryResponse {
	return StageHistoryResponse{
		ID:          entry.ID,
		FromStageID: entry.FromStageID,
		ToStageID:   entry.ToStageID,
		ActorID:     entry.ActorID,
		Source:      entry.Source,
		Reason:      entry.Reason,
		CreatedAt:   entry.CreatedAt,
	}
}

type ActivityResponse struct {
	ID        int64          `json:"id"`
	ActorType string         `json:"actorType"`
	EventType string         `json:"eventType"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func ToActivityResponse(entry repository.ActivityEntry) ActivityResponse {
	return ActivityResponse{
		ID:        entry.ID,
		ActorType: entry.ActorType,
		EventType: entry.EventType,
		Title:     entry.Title,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}
}
