package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Toggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_toggles_total",
		Help: "Edge toggles by kind and resulting action",
	}, []string{"kind", "action"})
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_notifications_total",
		Help: "Notification dispatch outcomes by type",
	}, []string{"type", "outcome"})
	NotificationQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socialgraph_notification_queue_length",
		Help: "Sampled length of the async notification queue",
	})
	NotificationLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialgraph_notification_lag_seconds",
		Help:    "Time from enqueue to persisted notification",
		Buckets: prometheus.DefBuckets,
	})
	TrendingRecompute = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialgraph_trending_recompute_seconds",
		Help:    "Trending recompute duration per location",
		Buckets: prometheus.DefBuckets,
	}, []string{"location"})
	TrendingTopics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "socialgraph_trending_topics",
		Help: "Ranked topics after the last recompute",
	}, []string{"location"})
	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_job_runs_total",
		Help: "Scheduled job runs by job and outcome",
	}, []string{"job", "outcome"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialgraph_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_rate_limited_total",
		Help: "Requests rejected by the per-action limiter",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(
		Toggles, NotificationsSent, NotificationQueue, NotificationLag,
		TrendingRecompute, TrendingTopics, JobRuns,
		HTTPRequests, HTTPDuration, RateLimited,
	)
}

// IncToggle 记录一次边切换
func IncToggle(kind, action string) { Toggles.WithLabelValues(kind, action).Inc() }

// ObserveRecompute 记录一次趋势重算
func ObserveRecompute(location string, start time.Time, ranked int) {
	TrendingRecompute.WithLabelValues(location).Observe(time.Since(start).Seconds())
	TrendingTopics.WithLabelValues(location).Set(float64(ranked))
}

// Handler 暴露给 /metrics
func Handler() http.Handler { return promhttp.Handler() }

// GinMiddleware 按路由模板统计请求
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
