package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/scheduler"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

// GetTrending 热门话题
// @Summary 热门话题
// @Tags 热门
// @Param location query string false "地区" default(global)
// @Param category query string false "分类"
// @Param limit query int false "数量，最大 50" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/trending [get]
func (h *Handler) GetTrending(c *gin.Context) {
	location := c.DefaultQuery("location", model.LocationGlobal)
	topics, err := h.trending.GetTrending(c.Request.Context(), location, c.Query("category"),
		intQuery(c, "limit", service.DefaultTrendingLimit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"location": location, "topics": topics})
}

// TrendingLocations 有热门数据的地区
// @Summary 热门地区
// @Tags 热门
// @Success 200 {object} response.Response{data=[]string}
// @Router /api/v1/trending/locations [get]
func (h *Handler) TrendingLocations(c *gin.Context) {
	locs, err := h.trending.Locations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, locs)
}

// TrendingUsers 近 24 小时互动率最高的用户
// @Summary 热门用户
// @Tags 热门
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]service.TrendingUser}
// @Router /api/v1/trending/users [get]
func (h *Handler) TrendingUsers(c *gin.Context) {
	users, err := h.trending.TrendingUsers(c.Request.Context(), intQuery(c, "limit", service.DefaultTrendingLimit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// PersonalizedTrending 关注的人最近在用的热门话题
// @Summary 个性化热门
// @Tags 热门
// @Security BearerAuth
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]model.TrendingTopic}
// @Router /api/v1/trending/personalized [get]
func (h *Handler) PersonalizedTrending(c *gin.Context) {
	topics, err := h.trending.Personalized(c.Request.Context(), currentUser(c), intQuery(c, "limit", service.DefaultTrendingLimit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, topics)
}

// RecomputeTrending 立即重算全部地区，定时任务正在执行时返回 409
// @Summary 重算热门
// @Tags 管理
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/trending/recompute [post]
func (h *Handler) RecomputeTrending(c *gin.Context) {
	ran, err := h.jobs.RunNow(c.Request.Context(), scheduler.JobTrending)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ran {
		response.Error(c, apperr.Conflict("trending recompute already running"))
		return
	}
	locs, err := h.trending.Locations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"job": scheduler.JobTrending, "locations": locs})
}

// HashtagDetails 话题详情
// @Summary 话题详情
// @Tags 话题
// @Param tag path string true "话题"
// @Param location query string false "地区" default(global)
// @Success 200 {object} response.Response{data=service.HashtagDetails}
// @Failure 404 {object} response.Response
// @Router /api/v1/hashtags/{tag} [get]
func (h *Handler) HashtagDetails(c *gin.Context) {
	d, err := h.hashtags.Details(c.Request.Context(), c.Param("tag"), c.Query("location"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, d)
}

// SuggestHashtags 话题前缀补全
// @Summary 话题补全
// @Tags 话题
// @Param q query string true "前缀"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]model.Hashtag}
// @Router /api/v1/search/hashtags [get]
func (h *Handler) SuggestHashtags(c *gin.Context) {
	list, err := h.hashtags.Suggest(c.Request.Context(), c.Query("q"), intQuery(c, "limit", service.DefaultSuggestLimit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// UpdateHashtag 修改话题分类、屏蔽与推广标记
// @Summary 修改话题
// @Tags 管理
// @Accept json
// @Param X-Admin-Token header string true "管理令牌"
// @Param tag path string true "话题"
// @Param request body service.HashtagFlags true "修改内容"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/hashtags/{tag} [patch]
func (h *Handler) UpdateHashtag(c *gin.Context) {
	var req service.HashtagFlags
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.hashtags.SetFlags(c.Request.Context(), c.Param("tag"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
