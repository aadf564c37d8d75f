package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskbell/deskbell/internal/call"
	"github.com/deskbell/deskbell/internal/common"
)

type startCallReq struct {
	BusinessSlug   string `json:"business_slug" binding:"required"`
	ProviderCallID string `json:"provider_call_id"`
	FromNumber     string `json:"from_number"`
}

func (h *Handler) StartCall(c *gin.Context) {
	var req startCallReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "business_slug is required")
		return
	}

	res, err := h.CallSvc.Start(c.Request.Context(), req.BusinessSlug, req.ProviderCallID, req.FromNumber)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

type callMessageReq struct {
	CallID  string `json:"call_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *Handler) CallMessage(c *gin.Context) {
	var req callMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "call_id and message are required")
		return
	}

	res, err := h.CallSvc.Message(c.Request.Context(), req.CallID, req.Message)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

type endCallReq struct {
	CallID         string `json:"call_id" binding:"required"`
	Status         string `json:"status"`
	ResolutionType string `json:"resolution_type"`
	Outcome        string `json:"outcome"`
}

func (h *Handler) EndCall(c *gin.Context) {
	var req endCallReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "call_id is required")
		return
	}

	sess, err := h.CallSvc.End(c.Request.Context(), req.CallID, call.EndParams{
		Status:         req.Status,
		ResolutionType: req.ResolutionType,
		Outcome:        req.Outcome,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, sess)
}

// GetCall accepts either the public CALL- code or the telephony provider's id.
func (h *Handler) GetCall(c *gin.Context) {
	id := c.Param("call_id")
	sess, err := h.CallSvc.GetByPublicCode(c.Request.Context(), id)
	if err != nil {
		sess, err = h.CallSvc.GetByProviderCallID(c.Request.Context(), id)
	}
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) SearchCalls(c *gin.Context) {
	p := call.SearchParams{
		BusinessID: c.Query("business_id"),
		Status:     c.Query("status"),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.To = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Offset = n
		}
	}

	sessions, total, err := h.CallSvc.Search(c.Request.Context(), p)
	if err != nil {
		failFor(c, err)
		return
	}
	if sessions == nil {
		sessions = []call.Session{}
	}
	common.OK(c, gin.H{"calls": sessions, "total": total})
}

func (h *Handler) CallAnalytics(c *gin.Context) {
	businessID := c.Query("business_id")
	if businessID == "" {
		common.Fail(c, http.StatusBadRequest, 40000, "business_id is required")
		return
	}
	stats, err := h.CallSvc.Stats(c.Request.Context(), businessID)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, stats)
}
