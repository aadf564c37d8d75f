package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/handoff"
)

func (h *Handler) ListOpenHandoffs(c *gin.Context) {
	businessID := c.Query("business_id")
	if businessID == "" {
		common.Fail(c, http.StatusBadRequest, 40000, "business_id is required")
		return
	}
	reqs, err := h.Handoffs.ListOpen(c.Request.Context(), businessID)
	if err != nil {
		failFor(c, err)
		return
	}
	if reqs == nil {
		reqs = []handoff.Request{}
	}
	common.OK(c, gin.H{"handoffs": reqs})
}

type updateHandoffReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateHandoff(c *gin.Context) {
	var req updateHandoffReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "status is required")
		return
	}
	switch req.Status {
	case handoff.StatusOpen, handoff.StatusAssigned, handoff.StatusResolved, handoff.StatusClosed:
	default:
		common.Fail(c, http.StatusBadRequest, 40000, "unknown status")
		return
	}

	updated, err := h.Handoffs.UpdateStatus(c.Request.Context(), c.Param("handoff_id"), req.Status)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, updated)
}
