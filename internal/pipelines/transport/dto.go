// Package transport defines request and response DTOs for the pipelines API.
package transport

import (
	"time"

	"conviaq_backend/internal/pipelines/repository"
)

type CreatePipelineRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=120"`
	Universal bool   `json:"universal"`
}

type RenamePipelineRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type CreateStageRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	StageKey string `json:"stageKey" validate:"omitempty,lowercase,max=60"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	IsFinal  bool   `json:"isFinal"`
}

type UpdateStageRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	Color   *string `json:"color" validate:"omitempty,hexcolor"`
	IsFinal *bool   `json:"isFinal"`
}

type ReorderStagesRequest struct {
	StageIDs []int64 `json:"stageIds" validate:"required,min=1,dive,gt=0"`
}

type PipelineResponse struct {
	ID        int64     `json:"id"`
	TenantID  *int64    `json:"tenantId"`
	Name      string    `json:"name"`
	Universal bool      `json:"universal"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StageResponse struct {
	ID         int64   `json:"id"`
	PipelineID int64   `json:"pipelineId"`
	Name       string  `json:"name"`
	StageKey   *string `json:"stageKey"`
	Position   int     `json:"position"`
	Color      string  `json:"color"`
	IsFinal    bool    `json:"isFinal"`
}

type PipelineDetailResponse struct {
	PipelineResponse
	Stages []StageResponse `json:"stages"`
}

func ToPipelineResponse(p repository.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Name:      p.Name,
		Universal: p.TenantID == nil,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func ToStageResponse(s repository.Stage) StageResponse {
	return StageResponse{
		ID:         s.ID,
		PipelineID: s.PipelineID,
		Name:       s.Name,
		StageKey:   s.StageKey,
		Position:   s.Position,
		Color:      s.Color,
		IsFinal:    s.IsFinal,
	}
}

func ToPipelineDetailResponse(p repository.Pipeline, stages []repository.Stage) PipelineDetailResponse {
	items := make([]StageResponse, 0, len(stages))
	for _, s := range stages {
		items = append(items, ToStageResponse(s))
	}
	return PipelineDetailResponse{
		PipelineResponse: ToPipelineResponse(p),
		Stages:           items,
	}
}
