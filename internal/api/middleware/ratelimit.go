package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/socialgraph/internal/api/handler"
	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/internal/ratelimit"
	"github.com/d60-Lab/socialgraph/pkg/logger"
	"github.com/d60-Lab/socialgraph/pkg/response"
)

// RateLimit 按 (用户, 动作) 限流；匿名请求按 IP 计数；redis 故障时放行
func RateLimit(l ratelimit.Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		actor := c.GetString(handler.ContextUserID)
		if actor == "" {
			actor = "ip:" + c.ClientIP()
		}
		d, err := l.Allow(c.Request.Context(), actor, action)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		if !d.Allowed {
			metrics.RateLimited.WithLabelValues(action).Inc()
			c.Header("Retry-After", strconv.Itoa(int(d.ResetIn.Seconds())+1))
			response.TooManyRequests(c, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// GlobalLimit 进程级令牌桶，rps<=0 时不限制
func GlobalLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !lim.Allow() {
			metrics.RateLimited.WithLabelValues("global").Inc()
			response.TooManyRequests(c, "server busy")
			return
		}
		c.Next()
	}
}
