// Package bookings provides the autolavado booking bounded context: the wash
// service catalog, slot availability and the booking agenda.
package bookings

import (
	"conviaq_backend/internal/bookings/handler"
	"conviaq_backend/internal/bookings/repository"
	"conviaq_backend/internal/bookings/service"
	appevents "conviaq_backend/internal/events"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the bookings bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates and initializes the bookings module. scheduler may be nil
// when Redis is not configured; bookings are then created without reminders.
// activity is the lead timeline writer.
func NewModule(pool *pgxpool.Pool, scheduler service.Scheduler, activity service.ActivityLog, bus appevents.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, scheduler, activity, bus, log)

	return &Module{handler: handler.New(svc, val), repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "bookings"
}

// Repository exposes the booking store for the background worker.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts booking routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/bookings")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
