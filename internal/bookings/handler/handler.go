// Package handler exposes the bookings HTTP API.
package handler

import (
	"net/http"
	"strconv"

	"conviaq_backend/internal/bookings/service"
	"conviaq_backend/internal/bookings/transport"
	"conviaq_backend/platform/httpkit"
	"conviaq_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/services", h.ListServices)
	rg.GET("/availability", h.Availability)
	rg.GET("", h.Agenda)
	rg.POST("", h.Create)
	rg.POST("/:id/cancel", h.Cancel)
}

func tenantID(c *gin.Context) (int64, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return 0, false
	}
	return id.TenantID(), true
}

func (h *Handler) ListServices(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	services, err := h.svc.ListServices(c.Request.Context(), tenant)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": services})
}

func (h *Handler) Availability(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	serviceID, err := strconv.ParseInt(c.Query("serviceId"), 10, 64)
	if err != nil || serviceID <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "serviceId query parameter is required", nil)
		return
	}
	date := c.Query("date")
	if date == "" {
		httpkit.Error(c, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}

	availability, err := h.svc.Availability(c.Request.Context(), tenant, serviceID, date)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, availability)
}

func (h *Handler) Agenda(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		httpkit.Error(c, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}
	days := 1
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "days must be a number", nil)
			return
		}
		days = parsed
	}

	bookings, err := h.svc.Agenda(c.Request.Context(), tenant, date, days)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": bookings})
}

func (h *Handler) Create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req transport.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	booking, err := h.svc.Create(c.Request.Context(), tenant, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, booking)
}

func (h *Handler) Cancel(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid booking id", nil)
		return
	}

	booking, err := h.svc.Cancel(c.Request.Context(), tenant, bookingID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, booking)
}
