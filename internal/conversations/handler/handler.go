// Package handler exposes the conversations HTTP API and the gateway webhook.
package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"conviaq_backend/internal/conversations/service"
	"conviaq_backend/internal/conversations/transport"
	"conviaq_backend/platform/httpkit"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc           *service.Service
	val           *validator.Validator
	webhookSecret string
	log           *logger.Logger
}

func New(svc *service.Service, val *validator.Validator, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, webhookSecret: webhookSecret, log: log}
}

// RegisterWebhookRoutes mounts the public gateway callback.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/evolution/:instance", h.Webhook)
}

// RegisterProtectedRoutes mounts the authenticated conversation endpoints.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id/messages", h.Messages)
	rg.POST("/:id/messages", h.Send)
}

// RegisterChannelRoutes mounts the gateway channel management endpoints.
func (h *Handler) RegisterChannelRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ChannelStatus)
	rg.POST("/connect", h.ConnectChannel)
}

func (h *Handler) ChannelStatus(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	channel, err := h.svc.ChannelStatus(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, channel)
}

func (h *Handler) ConnectChannel(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	resp, err := h.svc.ConnectChannel(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Webhook receives Evolution gateway callbacks. The shared secret header
// gates the endpoint; the gateway retries on non-2xx answers, so processing
// errors for known instances still return 200 to stop redelivery storms.
func (h *Handler) Webhook(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		h.log.WebhookEvent(c.Param("instance"), "auth", false, "bad secret")
		httpkit.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload transport.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), c.Param("instance"), payload); err != nil {
		if httpkit.HandleErrorAck(c, err) {
			return
		}
	}

	httpkit.Ack(c)
}

func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.svc.List(c.Request.Context(), id.TenantID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Messages(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.svc.Messages(c.Request.Context(), conversationID, id.TenantID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Send(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	conversationID, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	message, err := h.svc.Send(c.Request.Context(), conversationID, id.TenantID(), req.Body)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, message)
}

func parseID(c *gin.Context) (int64, bool) {
	value, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || value <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation id", nil)
		return 0, false
	}
	return value, true
}
