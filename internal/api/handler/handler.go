package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/socialgraph/internal/service"
)

// ContextUserID 鉴权中间件写入的当前用户 id
const ContextUserID = "user_id"

// JobRunner 手动触发后台任务，与定时执行共用同一把互斥；任务正在运行时返回 false
type JobRunner interface {
	RunNow(ctx context.Context, name string) (bool, error)
}

// Handler 聚合所有 HTTP 处理函数依赖的服务
type Handler struct {
	users         service.UserService
	relService    service.RelationshipService
	tweets        service.TweetService
	engagement    service.EngagementService
	feed          service.FeedService
	trending      service.TrendingService
	hashtags      service.HashtagService
	notifications service.NotificationService
	messages      service.MessageService
	jobs          JobRunner
}

// Services 构造 Handler 的参数
type Services struct {
	Users         service.UserService
	Relationships service.RelationshipService
	Tweets        service.TweetService
	Engagement    service.EngagementService
	Feed          service.FeedService
	Trending      service.TrendingService
	Hashtags      service.HashtagService
	Notifications service.NotificationService
	Messages      service.MessageService
	Jobs          JobRunner
}

func New(s Services) *Handler {
	return &Handler{
		users:         s.Users,
		relService:    s.Relationships,
		tweets:        s.Tweets,
		engagement:    s.Engagement,
		feed:          s.Feed,
		trending:      s.Trending,
		hashtags:      s.Hashtags,
		notifications: s.Notifications,
		messages:      s.Messages,
		jobs:          s.Jobs,
	}
}

// currentUser 未登录时为空串
func currentUser(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// pageParams 非法值交给 service 归一化
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
