// Package auth provides the authentication bounded context module.
package auth

import (
	"conviaq_backend/internal/auth/handler"
	"conviaq_backend/internal/auth/repository"
	"conviaq_backend/internal/auth/service"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, cfg, log)

	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts auth routes. Login and refresh sit behind the
// stricter auth rate limiter; profile lookup requires a valid token.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/auth")
	public.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterPublicRoutes(public)

	protected := ctx.Protected.Group("/auth")
	m.handler.RegisterProtectedRoutes(protected)
}

var _ apphttp.Module = (*Module)(nil)
