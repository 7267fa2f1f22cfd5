package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/pkg/response"
)

// ToggleFollow 关注/取消关注；私密账号进入待审批
// @Summary 关注或取消关注
// @Tags 关系链
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "被关注用户ID"
// @Success 200 {object} response.Response{data=service.FollowResult}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{user_id}/follow [post]
func (h *Handler) ToggleFollow(c *gin.Context) {
	res, err := h.relService.ToggleFollow(c.Request.Context(), currentUser(c), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// FollowStatus 当前用户对目标的关注状态
// @Summary 查询关注状态
// @Tags 关系链
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=service.FollowState}
// @Router /api/v1/users/{user_id}/follow-status [get]
func (h *Handler) FollowStatus(c *gin.Context) {
	st, err := h.relService.FollowStatus(c.Request.Context(), currentUser(c), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, st)
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FollowPage}
// @Router /api/v1/users/{user_id}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowers(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FollowPage}
// @Router /api/v1/users/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowing(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// MutualFollows 当前用户与目标共同关注的人
// @Summary 共同关注
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=[]model.UserSummary}
// @Router /api/v1/users/{user_id}/mutual [get]
func (h *Handler) MutualFollows(c *gin.Context) {
	list, err := h.relService.MutualFollows(c.Request.Context(), currentUser(c), c.Param("user_id"), intQuery(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// SuggestFollows 二度关系推荐
// @Summary 推荐关注
// @Tags 关系链
// @Security BearerAuth
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]service.SuggestedUser}
// @Router /api/v1/follows/suggestions [get]
func (h *Handler) SuggestFollows(c *gin.Context) {
	list, err := h.relService.SuggestFollows(c.Request.Context(), currentUser(c), intQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// ListFollowRequests 待我审批的关注请求
// @Summary 关注请求列表
// @Tags 关系链
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FollowPage}
// @Router /api/v1/follows/requests [get]
func (h *Handler) ListFollowRequests(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.relService.ListFollowRequests(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// AcceptRequest 通过关注请求
// @Summary 通过关注请求
// @Tags 关系链
// @Security BearerAuth
// @Param request_id path string true "请求ID"
// @Success 200 {object} response.Response{data=model.Follow}
// @Failure 403 {object} response.Response
// @Router /api/v1/follows/requests/{request_id}/accept [post]
func (h *Handler) AcceptRequest(c *gin.Context) {
	edge, err := h.relService.AcceptRequest(c.Request.Context(), currentUser(c), c.Param("request_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, edge)
}

// RejectRequest 拒绝关注请求
// @Summary 拒绝关注请求
// @Tags 关系链
// @Security BearerAuth
// @Param request_id path string true "请求ID"
// @Success 200 {object} response.Response
// @Router /api/v1/follows/requests/{request_id}/reject [post]
func (h *Handler) RejectRequest(c *gin.Context) {
	if err := h.relService.RejectRequest(c.Request.Context(), currentUser(c), c.Param("request_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveFollower 移除粉丝
// @Summary 移除粉丝
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "粉丝ID"
// @Success 200 {object} response.Response
// @Router /api/v1/followers/{user_id} [delete]
func (h *Handler) RemoveFollower(c *gin.Context) {
	if err := h.relService.RemoveFollower(c.Request.Context(), currentUser(c), c.Param("user_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
