// Package handler exposes the metrics HTTP API.
package handler

import (
	"conviaq_backend/internal/metrics/service"
	"conviaq_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	dashboard, err := h.svc.Dashboard(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, dashboard)
}
