package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deskbell/deskbell/internal/common"
	"github.com/deskbell/deskbell/internal/conversation"
)

type startConversationReq struct {
	BusinessSlug  string `json:"business_slug" binding:"required"`
	UserSessionID string `json:"user_session_id"`
	Channel       string `json:"channel"`
}

func (h *Handler) StartConversation(c *gin.Context) {
	var req startConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "business_slug is required")
		return
	}

	res, err := h.ChatSvc.StartConversation(c.Request.Context(), req.BusinessSlug, req.UserSessionID, req.Channel)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40000, "message is required")
		return
	}

	res, err := h.ChatSvc.SendMessage(c.Request.Context(), c.Param("conversation_id"), req.Message)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.ChatSvc.GetConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, conv)
}

func (h *Handler) ConversationHistory(c *gin.Context) {
	msgs, err := h.ChatSvc.History(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	common.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) EndConversation(c *gin.Context) {
	conv, err := h.ChatSvc.EndConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, conv)
}
