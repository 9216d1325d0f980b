// Package service contains pipeline business logic and the access rules for
// universal pipelines.
package service

import (
	"context"
	"errors"

	"conviaq_backend/internal/pipelines/repository"
	"conviaq_backend/internal/pipelines/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

// Store is the data access surface of the pipelines service.
type Store interface {
	Create(ctx context.Context, tenantID *int64, name string) (repository.Pipeline, error)
	GetByID(ctx context.Context, pipelineID int64) (repository.Pipeline, error)
	ListForTenant(ctx context.Context, tenantID int64) ([]repository.Pipeline, error)
	Rename(ctx context.Context, pipelineID int64, name string) (repository.Pipeline, error)
	Delete(ctx context.Context, pipelineID int64) error
	CountLeads(ctx context.Context, pipelineID int64) (int64, error)

	ListStages(ctx context.Context, pipelineID int64) ([]repository.Stage, error)
	CreateStage(ctx context.Context, params repository.CreateStageParams) (repository.Stage, error)
	UpdateStage(ctx context.Context, stageID int64, params repository.UpdateStageParams) (repository.Stage, error)
	DeleteStage(ctx context.Context, stageID int64) error
	CountStageLeads(ctx context.Context, stageID int64) (int64, error)
	ReorderStages(ctx context.Context, pipelineID int64, orderedIDs []int64) error
}

// Caller identifies who is acting, for universal pipeline access checks.
type Caller struct {
	TenantID   int64
	Superadmin bool
}

type Service struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// List returns the caller's pipelines together with the universal templates.
func (s *Service) List(ctx context.Context, caller Caller) ([]transport.PipelineResponse, error) {
	pipelines, err := s.store.ListForTenant(ctx, caller.TenantID)
	if err != nil {
		return nil, err
	}

	items := make([]transport.PipelineResponse, 0, len(pipelines))
	for _, p := range pipelines {
		items = append(items, transport.ToPipelineResponse(p))
	}
	return items, nil
}

// Get returns one pipeline with its stages.
func (s *Service) Get(ctx context.Context, caller Caller, pipelineID int64) (transport.PipelineDetailResponse, error) {
	pipeline, err := s.readable(ctx, caller, pipelineID)
	if err != nil {
		return transport.PipelineDetailResponse{}, err
	}

	stages, err := s.store.ListStages(ctx, pipelineID)
	if err != nil {
		return transport.PipelineDetailResponse{}, err
	}
	return transport.ToPipelineDetailResponse(pipeline, stages), nil
}

// Create creates a pipeline. Regular callers create tenant pipelines; a
// superadmin creating with Universal set creates a shared template.
func (s *Service) Create(ctx context.Context, caller Caller, req transport.CreatePipelineRequest) (transport.PipelineResponse, error) {
	var tenantID *int64
	if req.Universal {
		if !caller.Superadmin {
			return transport.PipelineResponse{}, apperr.Forbidden("only superadmins can create universal pipelines")
		}
	} else {
		id := caller.TenantID
		tenantID = &id
	}

	pipeline, err := s.store.Create(ctx, tenantID, req.Name)
	if err != nil {
		return transport.PipelineResponse{}, err
	}
	return transport.ToPipelineResponse(pipeline), nil
}

// Rename renames a pipeline the caller can write.
func (s *Service) Rename(ctx context.Context, caller Caller, pipelineID int64, name string) (transport.PipelineResponse, error) {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return transport.PipelineResponse{}, err
	}

	pipeline, err := s.store.Rename(ctx, pipelineID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.PipelineResponse{}, apperr.NotFound("pipeline not found")
		}
		return transport.PipelineResponse{}, err
	}
	return transport.ToPipelineResponse(pipeline), nil
}

// Delete removes an empty pipeline. Pipelines that still hold leads are kept.
func (s *Service) Delete(ctx context.Context, caller Caller, pipelineID int64) error {
	if _, err := s.writable(ctx, caller, pipelineID); err != nil {
		return err
	}

	count, err := s.store.CountLeads(ctx, pipelineID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("pipeline still has leads")
	}

	if err := s.store.Delete(ctx, pipelineID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("pipeline not found")
		}
		return err
	}
	return nil
}

// readable resolves a pipeline the caller may read: their own or a universal one.
func (s *Service) readable(ctx context.Context, caller Caller, pipelineID int64) (repository.Pipeline, error) {
	pipeline, err := s.store.GetByID(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Pipeline{}, apperr.NotFound("pipeline not found")
		}
		return repository.Pipeline{}, err
	}
	if pipeline.TenantID != nil && *pipeline.TenantID != caller.TenantID && !caller.Superadmin {
		// Hidden rather than forbidden so foreign ids do not leak.
		return repository.Pipeline{}, apperr.NotFound("pipeline not found")
	}
	return pipeline, nil
}

// writable resolves a pipeline the caller may modify. Universal pipelines are
// writable only by superadmins.
func (s *Service) writable(ctx context.Context, caller Caller, pipelineID int64) (repository.Pipeline, error) {
	pipeline, err := s.readable(ctx, caller, pipelineID)
	if err != nil {
		return repository.Pipeline{}, err
	}
	if pipeline.TenantID == nil && !caller.Superadmin {
		return repository.Pipeline{}, apperr.Forbidden("universal pipelines are read only")
	}
	return pipeline, nil
}
