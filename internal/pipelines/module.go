// Package pipelines provides the pipeline bounded context module: pipeline
// and stage management, including the universal template pipelines.
package pipelines

import (
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/internal/pipelines/handler"
	"conviaq_backend/internal/pipelines/repository"
	"conviaq_backend/internal/pipelines/service"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipelines bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the pipelines module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, log)

	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipelines"
}

// RegisterRoutes mounts pipelines routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/pipelines")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
