package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

type retweetRequest struct {
	Type    string `json:"type" binding:"omitempty,oneof=retweet quote"`
	Comment string `json:"comment" binding:"max=280"`
}

// CreateTweet 发推
// @Summary 发布推文
// @Tags 推文
// @Security BearerAuth
// @Accept json
// @Param request body service.CreateTweetInput true "推文内容"
// @Success 201 {object} response.Response{data=model.Tweet}
// @Failure 400 {object} response.Response
// @Router /api/v1/tweets [post]
func (h *Handler) CreateTweet(c *gin.Context) {
	var req service.CreateTweetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.tweets.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// GetTweet 推文详情，附最近点赞者与回复
// @Summary 推文详情
// @Tags 推文
// @Param tweet_id path string true "推文ID"
// @Success 200 {object} response.Response{data=service.TweetDetail}
// @Failure 404 {object} response.Response
// @Router /api/v1/tweets/{tweet_id} [get]
func (h *Handler) GetTweet(c *gin.Context) {
	d, err := h.feed.TweetDetail(c.Request.Context(), c.Param("tweet_id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, d)
}

// EditTweet 编辑推文
// @Summary 编辑推文
// @Tags 推文
// @Security BearerAuth
// @Accept json
// @Param tweet_id path string true "推文ID"
// @Param request body service.TweetPatch true "修改内容"
// @Success 200 {object} response.Response{data=model.Tweet}
// @Failure 403 {object} response.Response
// @Router /api/v1/tweets/{tweet_id} [patch]
func (h *Handler) EditTweet(c *gin.Context) {
	var req service.TweetPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.tweets.Edit(c.Request.Context(), currentUser(c), c.Param("tweet_id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// DeleteTweet 删除推文
// @Summary 删除推文
// @Tags 推文
// @Security BearerAuth
// @Param tweet_id path string true "推文ID"
// @Success 200 {object} response.Response
// @Router /api/v1/tweets/{tweet_id} [delete]
func (h *Handler) DeleteTweet(c *gin.Context) {
	if err := h.tweets.Delete(c.Request.Context(), currentUser(c), c.Param("tweet_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ToggleLike 点赞/取消点赞
// @Summary 点赞
// @Tags 互动
// @Security BearerAuth
// @Param tweet_id path string true "推文ID"
// @Success 200 {object} response.Response{data=service.LikeResult}
// @Router /api/v1/tweets/{tweet_id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	res, err := h.engagement.ToggleLike(c.Request.Context(), currentUser(c), c.Param("tweet_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ToggleRetweet 转推或引用；再次调用撤销
// @Summary 转推
// @Tags 互动
// @Security BearerAuth
// @Accept json
// @Param tweet_id path string true "推文ID"
// @Param request body retweetRequest false "转推类型与评论"
// @Success 200 {object} response.Response{data=service.RetweetResult}
// @Router /api/v1/tweets/{tweet_id}/retweet [post]
func (h *Handler) ToggleRetweet(c *gin.Context) {
	var req retweetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	kind := model.RetweetPlain
	if req.Type != "" {
		kind = model.RetweetKind(req.Type)
	}
	res, err := h.engagement.ToggleRetweet(c.Request.Context(), currentUser(c), c.Param("tweet_id"), kind, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ToggleBookmark 收藏/取消收藏
// @Summary 收藏
// @Tags 互动
// @Security BearerAuth
// @Param tweet_id path string true "推文ID"
// @Success 200 {object} response.Response{data=service.BookmarkResult}
// @Router /api/v1/tweets/{tweet_id}/bookmark [post]
func (h *Handler) ToggleBookmark(c *gin.Context) {
	res, err := h.engagement.ToggleBookmark(c.Request.Context(), currentUser(c), c.Param("tweet_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// CreateReply 回复推文
// @Summary 回复
// @Tags 互动
// @Security BearerAuth
// @Accept json
// @Param tweet_id path string true "被回复推文ID"
// @Param request body service.ReplyInput true "回复内容"
// @Success 201 {object} response.Response{data=service.ReplyResult}
// @Router /api/v1/tweets/{tweet_id}/replies [post]
func (h *Handler) CreateReply(c *gin.Context) {
	var req service.ReplyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.engagement.CreateReply(c.Request.Context(), currentUser(c), c.Param("tweet_id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Thread 推文所在线程
// @Summary 线程
// @Tags 推文
// @Param tweet_id path string true "推文ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.ThreadView}
// @Router /api/v1/tweets/{tweet_id}/thread [get]
func (h *Handler) Thread(c *gin.Context) {
	page, pageSize := pageParams(c)
	v, err := h.tweets.Thread(c.Request.Context(), c.Param("tweet_id"), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// UserTweets 某用户发布的推文
// @Summary 用户推文
// @Tags 推文
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Router /api/v1/users/{user_id}/tweets [get]
func (h *Handler) UserTweets(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.tweets.UserTweets(c.Request.Context(), c.Param("user_id"), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// LikedTweets 某用户点赞过的推文
// @Summary 点赞列表
// @Tags 推文
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Router /api/v1/users/{user_id}/likes [get]
func (h *Handler) LikedTweets(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.tweets.LikedTweets(c.Request.Context(), c.Param("user_id"), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Timeline 首页时间线
// @Summary 时间线
// @Tags 时间线
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Router /api/v1/timeline [get]
func (h *Handler) Timeline(c *gin.Context) {
	page, pageSize := pageParams(c)
	p, err := h.feed.Timeline(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}
