// Package service contains lead business logic: CRUD over the repository and
// the stage reconciliation flow.
package service

import (
	"context"
	"errors"

	"conviaq_backend/internal/events"
	"conviaq_backend/internal/leads/repository"
	"conviaq_backend/internal/leads/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/phone"
)

// Store defines the data access interface needed by the leads service.
// This is a consumer-driven interface; the pgx repository satisfies it.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, leadID, tenantID int64) (repository.Lead, error)
	List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error)
	Update(ctx context.Context, leadID, tenantID int64, params repository.UpdateLeadParams) (repository.Lead, error)
	Delete(ctx context.Context, leadID, tenantID int64) error
	ListStageHistory(ctx context.Context, leadID, tenantID int64) ([]repository.StageHistoryEntry, error)
	ListActivity(ctx context.Context, leadID, tenantID int64) ([]repository.ActivityEntry, error)
	FindDefaultPipeline(ctx context.Context, tenantID int64) (repository.Pipeline, error)

	StageStore
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// Create creates a lead in the given pipeline. When no stage is specified the
// pipeline's first stage is used.
func (s *Service) Create(ctx context.Context, tenantID int64, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	stageID := req.StageID
	if stageID == 0 {
		first, err := s.store.FindFirstStage(ctx, req.PipelineID)
		if err != nil {
			if errors.Is(err, repository.ErrStageNotFound) {
				return transport.LeadResponse{}, apperr.Validation("pipeline has no stages")
			}
			return transport.LeadResponse{}, err
		}
		stageID = first.ID
	}

	params := repository.CreateLeadParams{
		TenantID:       tenantID,
		PipelineID:     req.PipelineID,
		StageID:        stageID,
		Name:           req.Name,
		DealValueCents: req.DealValueCents,
		Source:         req.Source,
	}
	if req.Phone != "" {
		normalized := phone.NormalizeE164(req.Phone)
		params.Phone = &normalized
	}
	if req.Email != "" {
		params.Email = &req.Email
	}

	lead, err := s.store.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		PipelineID: lead.PipelineID,
		StageID:    lead.StageID,
		Source:     derefString(lead.Source),
	})

	return transport.ToLeadResponse(lead), nil
}

// CreateInboundLead creates a lead for an unknown WhatsApp contact in the
// tenant's default pipeline. It returns the new lead's id for conversation
// linking.
func (s *Service) CreateInboundLead(ctx context.Context, tenantID int64, name, phoneNumber string) (int64, error) {
	pipeline, err := s.store.FindDefaultPipeline(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return 0, apperr.Validation("tenant has no pipeline")
		}
		return 0, err
	}

	source := "whatsapp"
	lead, err := s.Create(ctx, tenantID, transport.CreateLeadRequest{
		PipelineID: pipeline.ID,
		Name:       name,
		Phone:      phoneNumber,
		Source:     &source,
	})
	if err != nil {
		return 0, err
	}
	return lead.ID, nil
}

// GetByID retrieves a lead by ID within the caller's tenant.
func (s *Service) GetByID(ctx context.Context, leadID, tenantID int64) (transport.LeadResponse, error) {
	lead, err := s.store.GetByID(ctx, leadID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns leads for the tenant, optionally filtered by pipeline and stage.
func (s *Service) List(ctx context.Context, params repository.ListLeadsParams) ([]transport.LeadResponse, error) {
	leads, err := s.store.List(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	return items, nil
}

// Update updates a lead's mutable fields.
func (s *Service) Update(ctx context.Context, leadID, tenantID int64, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateLeadParams{
		Name:           req.Name,
		Email:          req.Email,
		DealValueCents: req.DealValueCents,
		AssignedUserID: req.AssignedUserID,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	lead, err := s.store.Update(ctx, leadID, tenantID, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// Delete removes a lead.
func (s *Service) Delete(ctx context.Context, leadID, tenantID int64) error {
	if err := s.store.Delete(ctx, leadID, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}

// StageHistory returns a lead's stage transitions.
func (s *Service) StageHistory(ctx context.Context, leadID, tenantID int64) ([]transport.StageHistoryResponse, error) {
	entries, err := s.store.ListStageHistory(ctx, leadID, tenantID)
	if err != nil {
		return nil, err
	}

	items := make([]transport.StageHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, transport.ToStageHistoryResponse(entry))
	}
	return items, nil
}

// Activity returns a lead's activity feed.
func (s *Service) Activity(ctx context.Context, leadID, tenantID int64) ([]transport.ActivityResponse, error) {
	entries, err := s.store.ListActivity(ctx, leadID, tenantID)
	if err != nil {
		return nil, err
	}

	items := make([]transport.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, transport.ToActivityResponse(entry))
	}
	return items, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
