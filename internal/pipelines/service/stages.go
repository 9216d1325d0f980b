package service

import (
	"context"
	"errors"

	"conviaq_backend/internal/pipelines/repository"
	"conviaq_backend/internal/pipelines/transport"
	"conviaq_backend/platform/apperr"
)

// CreateStage appends a stage to a pipeline the caller can write.
func (s *Service) CreateStage(ctx context.Context, caller Caller, pipelineID int64, req transport.CreateStageRequest) (transport.StageResponse, error) {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return transport.StageResponse{}, err
	}

	params := repository.CreateStageParams{
		PipelineID: pipelineID,
		Name:       req.Name,
		Color:      req.Color,
		IsFinal:    req.IsFinal,
	}
	if req.StageKey != "" {
		params.StageKey = &req.StageKey
	}

	stage, err := s.store.CreateStage(ctx, params)
	if err != nil {
		return transport.StageResponse{}, err
	}
	return transport.ToStageResponse(stage), nil
}

// UpdateStage updates a stage's mutable fields.
func (s *Service) UpdateStage(ctx context.Context, caller Caller, pipelineID, stageID int64, req transport.UpdateStageRequest) (transport.StageResponse, error) {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return transport.StageResponse{}, err
	}

	stage, err := s.store.UpdateStage(ctx, stageID, repository.UpdateStageParams{
		Name:    req.Name,
		Color:   req.Color,
		IsFinal: req.IsFinal,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return transport.StageResponse{}, apperr.NotFound("stage not found")
		}
		return transport.StageResponse{}, err
	}
	if stage.PipelineID != pipelineID {
		return transport.StageResponse{}, apperr.NotFound("stage not found")
	}
	return transport.ToStageResponse(stage), nil
}

// DeleteStage removes a stage that holds no leads.
func (s *Service) DeleteStage(ctx context.Context, caller Caller, pipelineID, stageID int64) error {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return err
	}

	count, err := s.store.CountStageLeads(ctx, stageID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("stage still has leads")
	}

	if err := s.store.DeleteStage(ctx, stageID); err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return apperr.NotFound("stage not found")
		}
		return err
	}
	return nil
}

// ReorderStages rewrites stage positions to match the given id order.
func (s *Service) ReorderStages(ctx context.Context, caller Caller, pipelineID int64, orderedIDs []int64) error {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return err
	}
	if len(orderedIDs) == 0 {
		return apperr.Validation("stage order cannot be empty")
	}

	seen := make(map[int64]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if id <= 0 {
			return apperr.Validation("invalid stage id in order")
		}
		if _, dup := seen[id]; dup {
			return apperr.Validation("duplicate stage id in order")
		}
		seen[id] = struct{}{}
	}

	return s.store.ReorderStages(ctx, pipelineID, orderedIDs)
}
