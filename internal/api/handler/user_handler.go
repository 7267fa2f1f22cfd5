package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

// Register 注册
// @Summary 注册
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "注册信息"
// @Success 201 {object} response.Response{data=service.AuthResult}
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Login 用户名或邮箱登录
// @Summary 登录
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "登录信息"
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Reactivate 重新启用已停用的账号
// @Summary 恢复账号
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "登录信息"
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/reactivate [post]
func (h *Handler) Reactivate(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.users.Reactivate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// NotificationSettings 当前的通知开关
// @Summary 通知设置
// @Tags 账号
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.NotificationPrefs}
// @Router /api/v1/me/notification-settings [get]
func (h *Handler) NotificationSettings(c *gin.Context) {
	prefs, err := h.users.NotificationSettings(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, prefs)
}

// Me 当前用户
// @Summary 当前用户资料
// @Tags 账号
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// UpdateProfile 部分更新资料与通知偏好
// @Summary 修改资料
// @Tags 账号
// @Security BearerAuth
// @Accept json
// @Param request body service.UserPatch true "修改内容"
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/me [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req service.UserPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// Deactivate 停用账号
// @Summary 停用账号
// @Tags 账号
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/me [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), currentUser(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetProfile 按用户名查看主页
// @Summary 用户主页
// @Tags 账号
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=service.Profile}
// @Failure 404 {object} response.Response
// @Router /api/v1/profiles/{username} [get]
func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.users.GetProfile(c.Request.Context(), c.Param("username"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}
