// Package handler exposes the pipelines HTTP API.
package handler

import (
	"net/http"
	"strconv"

	"conviaq_backend/internal/pipelines/service"
	"conviaq_backend/internal/pipelines/transport"
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
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Rename)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/stages", h.CreateStage)
	rg.PUT("/:id/stages/:stageId", h.UpdateStage)
	rg.DELETE("/:id/stages/:stageId", h.DeleteStage)
	rg.PUT("/:id/stages/order", h.ReorderStages)
}

func caller(c *gin.Context) (service.Caller, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return service.Caller{}, false
	}
	return service.Caller{
		TenantID:   id.TenantID(),
		Superadmin: id.HasRole(httpkit.RoleSuperadmin),
	}, true
}

func (h *Handler) List(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	items, err := h.svc.List(c.Request.Context(), who)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), who, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, detail)
}

func (h *Handler) Create(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req transport.CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	pipeline, err := h.svc.Create(c.Request.Context(), who, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, pipeline)
}

func (h *Handler) Rename(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}

	var req transport.RenamePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	pipeline, err := h.svc.Rename(c.Request.Context(), who, pipelineID, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, pipeline)
}

func (h *Handler) Delete(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), who, pipelineID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.Ack(c)
}

func (h *Handler) CreateStage(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}

	var req transport.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stage, err := h.svc.CreateStage(c.Request.Context(), who, pipelineID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, stage)
}

func (h *Handler) UpdateStage(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}
	stageID, ok := parseID(c, "stageId", "invalid stage id")
	if !ok {
		return
	}

	var req transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stage, err := h.svc.UpdateStage(c.Request.Context(), who, pipelineID, stageID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stage)
}

func (h *Handler) DeleteStage(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}
	stageID, ok := parseID(c, "stageId", "invalid stage id")
	if !ok {
		return
	}

	if err := h.svc.DeleteStage(c.Request.Context(), who, pipelineID, stageID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.Ack(c)
}

func (h *Handler) ReorderStages(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	pipelineID, ok := parseID(c, "id", "invalid pipeline id")
	if !ok {
		return
	}

	var req transport.ReorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.ReorderStages(c.Request.Context(), who, pipelineID, req.StageIDs); httpkit.HandleError(c, err) {
		return
	}

	httpkit.Ack(c)
}

func parseID(c *gin.Context, param, message string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || value <= 0 {
		httpkit.Error(c, http.StatusBadRequest, message, nil)
		return 0, false
	}
	return value, true
}
