package handler

import (
	"net/http"
	"strconv"

	"conviaq_backend/internal/leads/repository"
	"conviaq_backend/internal/leads/service"
	"conviaq_backend/internal/leads/transport"
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
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/stage", h.MoveStage)
	rg.GET("/:id/stage-history", h.StageHistory)
	rg.GET("/:id/activity", h.Activity)
}

func (h *Handler) Create(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	params := repository.ListLeadsParams{TenantID: id.TenantID()}
	if value := c.Query("pipelineId"); value != "" {
		pipelineID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid pipeline id", nil)
			return
		}
		params.PipelineID = &pipelineID
	}
	if value := c.Query("stageId"); value != "" {
		stageID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid stage id", nil)
			return
		}
		params.StageID = &stageID
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": leads})
}

func (h *Handler) GetByID(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), leadID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) Update(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), leadID, id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) Delete(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), leadID, id.TenantID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.Ack(c)
}

func (h *Handler) StageHistory(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	entries, err := h.svc.StageHistory(c.Request.Context(), leadID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": entries})
}

func (h *Handler) Activity(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	entries, err := h.svc.Activity(c.Request.Context(), leadID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": entries})
}

func parseID(c *gin.Context) (int64, bool) {
	value, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || value <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return 0, false
	}
	return value, true
}
