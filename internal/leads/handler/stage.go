package handler

import (
	"net/http"
	"strconv"

	"conviaq_backend/internal/leads/service"
	"conviaq_backend/internal/leads/transport"
	"conviaq_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// MoveStage handles PATCH /leads/:id/stage. Unlike the other lead routes it
// answers with the acknowledgement envelope: {"ok":true} on success and
// {"ok":false,"error":...} on failure, so pipeline boards can treat the move
// as a fire-and-confirm action.
func (h *Handler) MoveStage(c *gin.Context) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		httpkit.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	leadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || leadID <= 0 {
		httpkit.Fail(c, http.StatusBadRequest, "invalid lead id")
		return
	}

	var req transport.MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Fail(c, http.StatusBadRequest, "invalid stage id")
		return
	}

	_, err = h.svc.MoveStage(c.Request.Context(), service.MoveStageInput{
		LeadID:   leadID,
		TenantID: id.TenantID(),
		ActorID:  id.UserID(),
		StageID:  req.StageID,
		Reason:   req.Reason,
		Source:   req.Source,
	})
	if httpkit.HandleErrorAck(c, err) {
		return
	}

	httpkit.Ack(c)
}
