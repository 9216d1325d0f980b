// Package handler exposes the superadmin tenants API.
package handler

import (
	"net/http"
	"strconv"

	"conviaq_backend/internal/tenants/service"
	"conviaq_backend/internal/tenants/transport"
	"conviaq_backend/platform/httpkit"
	"conviaq_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Provision)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/stats", h.Stats)
	rg.POST("/:id/suspend", h.Suspend)
	rg.POST("/:id/activate", h.Activate)
}

func (h *Handler) Provision(c *gin.Context) {
	var req transport.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.svc.Provision(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	tenantID, ok := parseID(c)
	if !ok {
		return
	}

	tenant, err := h.svc.Get(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, tenant)
}

func (h *Handler) Stats(c *gin.Context) {
	tenantID, ok := parseID(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stats)
}

func (h *Handler) Suspend(c *gin.Context) {
	tenantID, ok := parseID(c)
	if !ok {
		return
	}

	tenant, err := h.svc.Suspend(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, tenant)
}

func (h *Handler) Activate(c *gin.Context) {
	tenantID, ok := parseID(c)
	if !ok {
		return
	}

	tenant, err := h.svc.Activate(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, tenant)
}

func parseID(c *gin.Context) (int64, bool) {
	value, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || value <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return 0, false
	}
	return value, true
}
