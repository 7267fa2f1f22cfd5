package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/pkg/response"
)

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// SendMessage 发私信，必要时创建会话
// @Summary 发送私信
// @Tags 私信
// @Security BearerAuth
// @Accept json
// @Param request body sendMessageRequest true "私信内容"
// @Success 201 {object} response.Response{data=model.Message}
// @Router /api/v1/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.messages.Send(c.Request.Context(), currentUser(c), req.RecipientID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// DeleteMessage 仅对自己隐藏；双方都删除后物理删除
// @Summary 删除私信
// @Tags 私信
// @Security BearerAuth
// @Param message_id path string true "私信ID"
// @Success 200 {object} response.Response
// @Router /api/v1/messages/{message_id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.messages.DeleteMessage(c.Request.Context(), currentUser(c), c.Param("message_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListConversations 会话列表
// @Summary 会话列表
// @Tags 私信
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.ConversationPage}
// @Router /api/v1/conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.messages.ListConversations(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// ListMessages 会话内消息
// @Summary 会话消息
// @Tags 私信
// @Security BearerAuth
// @Param conversation_id path string true "会话ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.MessagePage}
// @Router /api/v1/conversations/{conversation_id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.messages.ListMessages(c.Request.Context(), currentUser(c), c.Param("conversation_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// MarkConversationRead 会话内全部已读
// @Summary 会话已读
// @Tags 私信
// @Security BearerAuth
// @Param conversation_id path string true "会话ID"
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/conversations/{conversation_id}/read [post]
func (h *Handler) MarkConversationRead(c *gin.Context) {
	n, err := h.messages.MarkRead(c.Request.Context(), currentUser(c), c.Param("conversation_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// UnreadMessages 私信未读数
// @Summary 私信未读数
// @Tags 私信
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/messages/unread-count [get]
func (h *Handler) UnreadMessages(c *gin.Context) {
	n, err := h.messages.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread_count": n})
}
