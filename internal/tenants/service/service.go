// Package service implements tenant provisioning and the superadmin console.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"conviaq_backend/internal/email"
	"conviaq_backend/internal/events"
	"conviaq_backend/internal/evolution"
	"conviaq_backend/internal/tenants/repository"
	"conviaq_backend/internal/tenants/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

// Store is the data access surface of the tenants service.
type Store interface {
	Provision(ctx context.Context, params repository.ProvisionParams) (repository.ProvisionResult, error)
	GetByID(ctx context.Context, tenantID int64) (repository.Tenant, error)
	List(ctx context.Context) ([]repository.Tenant, error)
	SetStatus(ctx context.Context, tenantID int64, status string) (repository.Tenant, error)
	GetStats(ctx context.Context, tenantID int64) (repository.Stats, error)
}

// Gateway registers WhatsApp instances for provisioned tenants.
type Gateway interface {
	Enabled() bool
	CreateInstance(ctx context.Context, instanceName, webhookURL string) (evolution.Instance, error)
}

// Mailer sends the post-provisioning welcome email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type Service struct {
	store   Store
	gateway Gateway
	mailer  Mailer
	bus     events.Bus
	log     *logger.Logger
}

func New(store Store, gateway Gateway, mailer Mailer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, gateway: gateway, mailer: mailer, bus: bus, log: log}
}

// Provision creates a complete tenant. The database bundle is atomic; the
// gateway instance and welcome email run after commit and are best effort,
// since a tenant without WhatsApp or mail is degraded but usable.
func (s *Service) Provision(ctx context.Context, req transport.ProvisionRequest) (transport.ProvisionResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return transport.ProvisionResponse{}, apperr.Wrap(apperr.KindInternal, "password hashing failed", err)
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "America/Mexico_City"
	}

	result, err := s.store.Provision(ctx, repository.ProvisionParams{
		Slug:          req.Slug,
		BusinessName:  req.BusinessName,
		Timezone:      timezone,
		OwnerName:     req.OwnerName,
		OwnerEmail:    req.OwnerEmail,
		OwnerPassHash: string(hash),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSlug):
			return transport.ProvisionResponse{}, apperr.Conflict("slug already taken")
		case errors.Is(err, repository.ErrDuplicateEmail):
			return transport.ProvisionResponse{}, apperr.Conflict("email already registered")
		}
		return transport.ProvisionResponse{}, err
	}

	s.connectGateway(ctx, result)
	s.sendWelcome(result.Tenant.BusinessName, req.OwnerName, req.OwnerEmail)

	s.bus.Publish(ctx, events.TenantProvisioned{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   result.Tenant.ID,
		OwnerID:    result.OwnerID,
		OwnerEmail: req.OwnerEmail,
		Name:       result.Tenant.BusinessName,
	})

	s.log.Info("tenant provisioned",
		"tenantId", result.Tenant.ID, "slug", result.Tenant.Slug, "channel", result.Channel)

	return transport.ProvisionResponse{
		Tenant:     transport.ToTenantResponse(result.Tenant),
		PipelineID: result.PipelineID,
		OwnerID:    result.OwnerID,
		Channel:    result.Channel,
	}, nil
}

func (s *Service) connectGateway(ctx context.Context, result repository.ProvisionResult) {
	if s.gateway == nil || !s.gateway.Enabled() {
		return
	}
	if _, err := s.gateway.CreateInstance(ctx, result.Channel, ""); err != nil {
		s.log.Error("gateway instance creation failed",
			"tenantId", result.Tenant.ID, "instance", result.Channel, "error", err)
	}
}

// sendWelcome delivers the welcome email off the request path.
func (s *Service) sendWelcome(businessName, ownerName, ownerEmail string) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		subject, body := email.WelcomeBody(businessName, ownerName, "https://app.conviaq.app/login")
		if err := s.mailer.Send(ctx, ownerEmail, subject, body); err != nil {
			s.log.Error("welcome email failed", "to", ownerEmail, "error", err)
		}
	}()
}

// List returns all tenants for the superadmin console.
func (s *Service) List(ctx context.Context) ([]transport.TenantResponse, error) {
	tenants, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]transport.TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, transport.ToTenantResponse(t))
	}
	return items, nil
}

// Get returns one tenant.
func (s *Service) Get(ctx context.Context, tenantID int64) (transport.TenantResponse, error) {
	tenant, err := s.store.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.TenantResponse{}, apperr.NotFound("tenant not found")
		}
		return transport.TenantResponse{}, err
	}
	return transport.ToTenantResponse(tenant), nil
}

// Suspend blocks a tenant's users from signing in.
func (s *Service) Suspend(ctx context.Context, tenantID int64) (transport.TenantResponse, error) {
	return s.setStatus(ctx, tenantID, repository.StatusSuspended)
}

// Activate lifts a suspension.
func (s *Service) Activate(ctx context.Context, tenantID int64) (transport.TenantResponse, error) {
	return s.setStatus(ctx, tenantID, repository.StatusActive)
}

func (s *Service) setStatus(ctx context.Context, tenantID int64, status string) (transport.TenantResponse, error) {
	tenant, err := s.store.SetStatus(ctx, tenantID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.TenantResponse{}, apperr.NotFound("tenant not found")
		}
		return transport.TenantResponse{}, err
	}

	s.log.Info("tenant status changed", "tenantId", tenantID, "status", status)
	return transport.ToTenantResponse(tenant), nil
}

// Stats returns the console summary counters for one tenant.
func (s *Service) Stats(ctx context.Context, tenantID int64) (transport.StatsResponse, error) {
	if _, err := s.store.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.StatsResponse{}, apperr.NotFound("tenant not found")
		}
		return transport.StatsResponse{}, err
	}

	stats, err := s.store.GetStats(ctx, tenantID)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	return transport.ToStatsResponse(stats), nil
}
