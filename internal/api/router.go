// Package api 组装 gin 路由
package api

import (
	"context"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/socialgraph/docs"
	"github.com/d60-Lab/socialgraph/internal/api/handler"
	"github.com/d60-Lab/socialgraph/internal/api/middleware"
	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/internal/ratelimit"
	"github.com/d60-Lab/socialgraph/pkg/auth"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

// 限流动作名
const (
	ActionTweet   = "tweet"
	ActionReply   = "reply"
	ActionLike    = "like"
	ActionRetweet = "retweet"
	ActionFollow  = "follow"
	ActionMessage = "message"
	ActionAuth    = "auth"
)

// Options 路由依赖
type Options struct {
	Mode        string
	ServiceName string
	GlobalRPS   float64
	GlobalBurst int
	AdminToken  string
	Identity    auth.Identity
	// Limiter 为 nil 时不做按用户限流
	Limiter ratelimit.Limiter
	// Health 探测下游存储
	Health func(ctx context.Context) error
}

func NewRouter(h *handler.Handler, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	handler.RegisterValidators()
	r := gin.New()
	r.Use(
		gin.Recovery(),
		sentrygin.New(sentrygin.Options{Repanic: true}),
		otelgin.Middleware(opts.ServiceName),
		middleware.RequestLogger(),
		metrics.GinMiddleware(),
		gzip.Gzip(gzip.DefaultCompression),
	)

	r.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limit := func(action string) gin.HandlerFunc { return middleware.RateLimit(opts.Limiter, action) }
	authed := middleware.Auth(opts.Identity)
	optional := middleware.OptionalAuth(opts.Identity)

	v1 := r.Group("/api/v1", middleware.GlobalLimit(opts.GlobalRPS, opts.GlobalBurst))
	{
		a := v1.Group("/auth", limit(ActionAuth))
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/reactivate", h.Reactivate)
	}

	pub := v1.Group("", optional)
	{
		pub.GET("/profiles/:username", h.GetProfile)
		pub.GET("/users/:user_id/followers", h.ListFollowers)
		pub.GET("/users/:user_id/following", h.ListFollowing)
		pub.GET("/users/:user_id/tweets", h.UserTweets)
		pub.GET("/users/:user_id/likes", h.LikedTweets)
		pub.GET("/tweets/:tweet_id", h.GetTweet)
		pub.GET("/tweets/:tweet_id/thread", h.Thread)
		pub.GET("/trending", h.GetTrending)
		pub.GET("/trending/locations", h.TrendingLocations)
		pub.GET("/trending/users", h.TrendingUsers)
		pub.GET("/hashtags/:tag", h.HashtagDetails)
		pub.GET("/search/hashtags", h.SuggestHashtags)
	}

	me := v1.Group("", authed)
	{
		me.GET("/me", h.Me)
		me.PATCH("/me", h.UpdateProfile)
		me.DELETE("/me", h.Deactivate)
		me.GET("/me/notification-settings", h.NotificationSettings)

		me.POST("/users/:user_id/follow", limit(ActionFollow), h.ToggleFollow)
		me.GET("/users/:user_id/follow-status", h.FollowStatus)
		me.GET("/users/:user_id/mutual", h.MutualFollows)
		me.GET("/follows/suggestions", h.SuggestFollows)
		me.GET("/follows/requests", h.ListFollowRequests)
		me.POST("/follows/requests/:request_id/accept", h.AcceptRequest)
		me.POST("/follows/requests/:request_id/reject", h.RejectRequest)
		me.DELETE("/followers/:user_id", h.RemoveFollower)

		me.POST("/tweets", limit(ActionTweet), h.CreateTweet)
		me.PATCH("/tweets/:tweet_id", h.EditTweet)
		me.DELETE("/tweets/:tweet_id", h.DeleteTweet)
		me.POST("/tweets/:tweet_id/like", limit(ActionLike), h.ToggleLike)
		me.POST("/tweets/:tweet_id/retweet", limit(ActionRetweet), h.ToggleRetweet)
		me.POST("/tweets/:tweet_id/bookmark", h.ToggleBookmark)
		me.POST("/tweets/:tweet_id/replies", limit(ActionReply), h.CreateReply)

		me.GET("/timeline", h.Timeline)
		me.GET("/trending/personalized", h.PersonalizedTrending)

		me.GET("/notifications", h.ListNotifications)
		me.GET("/notifications/unread-count", h.UnreadNotifications)
		me.POST("/notifications/read-all", h.MarkAllNotificationsRead)
		me.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
		me.DELETE("/notifications/:notification_id", h.DeleteNotification)
		me.DELETE("/notifications", h.ClearNotifications)

		me.POST("/messages", limit(ActionMessage), h.SendMessage)
		me.GET("/messages/unread-count", h.UnreadMessages)
		me.DELETE("/messages/:message_id", h.DeleteMessage)
		me.GET("/conversations", h.ListConversations)
		me.GET("/conversations/:conversation_id/messages", h.ListMessages)
		me.POST("/conversations/:conversation_id/read", h.MarkConversationRead)
	}

	admin := v1.Group("/admin", middleware.AdminOnly(opts.AdminToken))
	{
		admin.POST("/trending/recompute", h.RecomputeTrending)
		admin.PATCH("/hashtags/:tag", h.UpdateHashtag)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Response{Code: response.CodeNotFound, Message: "route not found"})
	})
	return r
}
