// Package conversations provides the WhatsApp conversation bounded context
// module: webhook ingestion, the inbox API and outbound messaging.
package conversations

import (
	"conviaq_backend/internal/conversations/handler"
	"conviaq_backend/internal/conversations/repository"
	"conviaq_backend/internal/conversations/service"
	"conviaq_backend/internal/events"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the conversations bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the conversations module. media and leads
// may be nil when storage or the leads bridge is not configured.
func NewModule(
	pool *pgxpool.Pool,
	sender service.Sender,
	media service.MediaStore,
	leads service.LeadCreator,
	bus events.Bus,
	cfg config.EvolutionConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool, log)
	svc := service.New(repo, sender, media, leads, bus, log)

	return &Module{handler: handler.New(svc, val, cfg.GetEvolutionWebhookSecret(), log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "conversations"
}

// RegisterRoutes mounts the inbox and channel management under the protected
// group and the gateway webhook on the public API surface.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	protected := ctx.Protected.Group("/conversations")
	m.handler.RegisterProtectedRoutes(protected)

	channels := ctx.Protected.Group("/channels")
	m.handler.RegisterChannelRoutes(channels)

	webhooks := ctx.V1.Group("/webhooks")
	m.handler.RegisterWebhookRoutes(webhooks)
}

var _ apphttp.Module = (*Module)(nil)
