// Package tenants provides the tenant bounded context module: atomic
// provisioning and the superadmin console.
package tenants

import (
	"conviaq_backend/internal/email"
	"conviaq_backend/internal/events"
	"conviaq_backend/internal/evolution"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/internal/tenants/handler"
	"conviaq_backend/internal/tenants/repository"
	"conviaq_backend/internal/tenants/service"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tenants bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the tenants module with all its dependencies.
func NewModule(pool *pgxpool.Pool, gateway *evolution.Client, mailer *email.Sender, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, gateway, mailer, bus, log)

	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tenants"
}

// RegisterRoutes mounts the tenants console on the superadmin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/tenants")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
