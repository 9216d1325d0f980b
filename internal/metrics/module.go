// Package metrics provides the dashboard bounded context: aggregate lead,
// booking and messaging numbers with a short-lived redis cache.
package metrics

import (
	appevents "conviaq_backend/internal/events"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/internal/metrics/handler"
	"conviaq_backend/internal/metrics/repository"
	"conviaq_backend/internal/metrics/service"
	"conviaq_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the metrics bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the metrics module. cache may be nil when
// Redis is not configured; dashboards are then computed on every request.
// Invalidation handlers are registered on the bus at construction time.
func NewModule(pool *pgxpool.Pool, cache service.Cache, bus appevents.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cache, log)
	svc.RegisterInvalidation(bus)

	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "metrics"
}

// RegisterRoutes mounts metrics routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/metrics")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
