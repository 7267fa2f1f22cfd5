package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

// ListNotifications 收件箱，仅返回 30 天内的通知
// @Summary 通知列表
// @Tags 通知
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Param unread_only query bool false "只看未读"
// @Param type query string false "通知类型"
// @Success 200 {object} response.Response{data=service.NotificationPage}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.notifications.List(c.Request.Context(), currentUser(c), service.NotificationQuery{
		Page:       page,
		Limit:      pageSize,
		UnreadOnly: c.Query("unread_only") == "true",
		Type:       model.NotificationType(c.Query("type")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// UnreadNotifications 未读数
// @Summary 未读通知数
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications/unread-count [get]
func (h *Handler) UnreadNotifications(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread_count": n})
}

// MarkNotificationRead 标记单条已读
// @Summary 标记已读
// @Tags 通知
// @Security BearerAuth
// @Param notification_id path string true "通知ID"
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/{notification_id}/read [post]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), currentUser(c), c.Param("notification_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllNotificationsRead 全部已读
// @Summary 全部已读
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// DeleteNotification 删除单条
// @Summary 删除通知
// @Tags 通知
// @Security BearerAuth
// @Param notification_id path string true "通知ID"
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/{notification_id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), currentUser(c), c.Param("notification_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ClearNotifications 清空收件箱
// @Summary 清空通知
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications [delete]
func (h *Handler) ClearNotifications(c *gin.Context) {
	n, err := h.notifications.DeleteAll(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}
