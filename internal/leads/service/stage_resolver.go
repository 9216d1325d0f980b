package service

import (
	"context"
	"errors"
	"strings"

	"conviaq_backend/internal/events"
	"conviaq_backend/internal/leads/domain"
	"conviaq_backend/internal/leads/repository"
	"conviaq_backend/platform/apperr"
)

// DefaultMoveSource labels stage moves whose caller did not name a source.
const DefaultMoveSource = "manual"

// StageStore is the data access surface of the stage reconciliation flow.
type StageStore interface {
	GetStage(ctx context.Context, stageID int64) (repository.Stage, error)
	GetPipeline(ctx context.Context, pipelineID int64) (repository.Pipeline, error)
	FindStageByKey(ctx context.Context, pipelineID int64, stageKey string) (repository.Stage, error)
	FindStageByName(ctx context.Context, pipelineID int64, name string) (repository.Stage, error)
	FindFirstStage(ctx context.Context, pipelineID int64) (repository.Stage, error)
	CloneStage(ctx context.Context, params repository.CloneStageParams) (repository.Stage, error)
	ApplyStageMove(ctx context.Context, params repository.ApplyStageMoveParams) error
}

// MoveStageInput carries one stage-move request after transport decoding.
type MoveStageInput struct {
	LeadID   int64
	TenantID int64
	ActorID  int64
	StageID  int64
	Reason   *string
	Source   string
}

// MoveStage reconciles the requested stage against the lead's pipeline and
// applies it. Resolution fully completes (including any stage clone it
// performs) before the mutation transaction begins; the two are not atomic
// with each other, which means a cloned stage can outlive a failed move.
//
// There is deliberately no short-circuit for a move onto the current stage:
// the transition is still recorded.
func (s *Service) MoveStage(ctx context.Context, input MoveStageInput) (domain.StageResolution, error) {
	if input.LeadID <= 0 {
		return domain.StageResolution{}, apperr.BadRequest("invalid lead id")
	}
	if input.StageID <= 0 {
		return domain.StageResolution{}, apperr.BadRequest("invalid stage id")
	}

	lead, err := s.store.GetByID(ctx, input.LeadID, input.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.StageResolution{}, apperr.NotFound("lead not found")
		}
		return domain.StageResolution{}, apperr.Wrap(apperr.KindInternal, "internal error", err)
	}

	requested, err := s.store.GetStage(ctx, input.StageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return domain.StageResolution{}, apperr.NotFound("stage not found")
		}
		return domain.StageResolution{}, apperr.Wrap(apperr.KindInternal, "internal error", err)
	}

	resolution, err := s.resolveStage(ctx, lead, requested)
	if err != nil {
		return domain.StageResolution{}, apperr.Wrap(apperr.KindInternal, "internal error", err)
	}

	source := input.Source
	if source == "" {
		source = DefaultMoveSource
	}

	err = s.store.ApplyStageMove(ctx, repository.ApplyStageMoveParams{
		LeadID:          lead.ID,
		TenantID:        lead.TenantID,
		StageID:         resolution.StageID,
		PreviousStageID: resolution.PreviousStageID,
		ActorID:         input.ActorID,
		Source:          source,
		Reason:          input.Reason,
		Metadata: map[string]any{
			"actorId":    input.ActorID,
			"stageId":    resolution.StageID,
			"source":     source,
			"resolution": string(resolution.Kind),
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.StageResolution{}, apperr.NotFound("lead not found")
		}
		return domain.StageResolution{}, apperr.Wrap(apperr.KindInternal, "internal error", err)
	}

	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		TenantID:    lead.TenantID,
		FromStageID: resolution.PreviousStageID,
		ToStageID:   resolution.StageID,
		ActorID:     input.ActorID,
		Source:      source,
		Resolution:  string(resolution.Kind),
		ClonedStage: resolution.Kind == domain.ResolutionCloned,
	})

	if resolution.Kind == domain.ResolutionCloned {
		s.log.Info("stage cloned during move",
			"leadId", lead.ID, "pipelineId", lead.PipelineID, "stageId", resolution.StageID)
	}

	return resolution, nil
}

// resolveStage decides which stage id to apply. First match wins:
//
//  1. requested stage already belongs to the lead's pipeline: use it.
//  2. requested stage belongs to a universal pipeline (no owning tenant):
//     use it directly, a deliberate cross-pipeline reference.
//  3. a stage in the lead's pipeline shares the requested stage's key
//     (exact, case-sensitive): substitute it.
//  4. a stage in the lead's pipeline matches the requested stage's name
//     case-insensitively: substitute it.
//  5. no equivalent exists: clone the requested stage into the lead's
//     pipeline at the next free position and use the clone.
func (s *Service) resolveStage(ctx context.Context, lead repository.Lead, requested repository.Stage) (domain.StageResolution, error) {
	if requested.PipelineID == lead.PipelineID {
		return domain.StageResolution{
			Kind:            domain.ResolutionDirect,
			StageID:         requested.ID,
			PreviousStageID: lead.StageID,
		}, nil
	}

	sourcePipeline, err := s.store.GetPipeline(ctx, requested.PipelineID)
	if err != nil {
		return domain.StageResolution{}, err
	}
	if sourcePipeline.TenantID == nil {
		return domain.StageResolution{
			Kind:            domain.ResolutionDirect,
			StageID:         requested.ID,
			PreviousStageID: lead.StageID,
		}, nil
	}

	if requested.StageKey != nil {
		match, err := s.store.FindStageByKey(ctx, lead.PipelineID, *requested.StageKey)
		if err == nil {
			return domain.StageResolution{
				Kind:            domain.ResolutionMapped,
				StageID:         match.ID,
				PreviousStageID: lead.StageID,
			}, nil
		}
		if !errors.Is(err, repository.ErrStageNotFound) {
			return domain.StageResolution{}, err
		}
	}

	match, err := s.store.FindStageByName(ctx, lead.PipelineID, requested.Name)
	if err == nil {
		return domain.StageResolution{
			Kind:            domain.ResolutionMapped,
			StageID:         match.ID,
			PreviousStageID: lead.StageID,
		}, nil
	}
	if !errors.Is(err, repository.ErrStageNotFound) {
		return domain.StageResolution{}, err
	}

	name := strings.TrimSpace(requested.Name)
	if name == "" {
		// Stages with a key but no display name still need a label.
		name = repository.CloneStageFallbackName
	}
	clone, err := s.store.CloneStage(ctx, repository.CloneStageParams{
		PipelineID: lead.PipelineID,
		Name:       name,
		StageKey:   requested.StageKey,
		Color:      requested.Color,
	})
	if err != nil {
		return domain.StageResolution{}, err
	}

	return domain.StageResolution{
		Kind:            domain.ResolutionCloned,
		StageID:         clone.ID,
		PreviousStageID: lead.StageID,
	}, nil
}
