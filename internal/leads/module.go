// Package leads provides the lead management bounded context module:
// lead CRUD, the stage reconciliation flow, stage history and the
// activity feed.
package leads

import (
	"conviaq_backend/internal/events"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/internal/leads/handler"
	"conviaq_backend/internal/leads/repository"
	"conviaq_backend/internal/leads/service"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, bus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the leads service for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the leads repository for cross-module activity writers.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
