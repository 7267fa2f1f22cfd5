package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/d60-Lab/socialgraph/config"
	"github.com/d60-Lab/socialgraph/internal/api"
	"github.com/d60-Lab/socialgraph/internal/api/handler"
	"github.com/d60-Lab/socialgraph/internal/cache"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/ratelimit"
	"github.com/d60-Lab/socialgraph/internal/scheduler"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/auth"
	rediscli "github.com/d60-Lab/socialgraph/pkg/cache"
	"github.com/d60-Lab/socialgraph/pkg/database"
	"github.com/d60-Lab/socialgraph/pkg/logger"
	"github.com/d60-Lab/socialgraph/pkg/tracing"
)

// @title SocialGraph API
// @version 1.0
// @description 关注关系、推文互动、时间线、热门话题与通知
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	rdb, err := rediscli.NewRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	clk := clock.System()
	jwt := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expire)
	index := cache.NewFollowingIndex(db, rdb, cfg.Redis.TTL)

	notifications := service.NewNotificationService(db, clk)
	dispatcher := service.NewAsyncNotifier(notifications, cfg.Notification.QueueSize)
	stopDispatcher := dispatcher.Start(cfg.Notification.Workers)

	graph := service.NewRelationshipService(db, clk, dispatcher, index)
	trending := service.NewTrendingService(db, clk, cache.NewTrendingCache(rdb, cfg.Redis.TTL), service.TrendingOptions{
		Locations:   cfg.Trending.Locations,
		MinActivity: cfg.Trending.MinActivity,
	})
	hashtags := service.NewHashtagService(db, clk)

	sched := scheduler.New()
	if err := scheduler.Register(sched, cfg, trending, hashtags, service.NewRetentionService(db, clk)); err != nil {
		return err
	}

	h := handler.New(handler.Services{
		Users:         service.NewUserService(db, clk, jwt, graph),
		Relationships: graph,
		Tweets:        service.NewTweetService(db, clk, dispatcher),
		Engagement:    service.NewEngagementService(db, clk, dispatcher),
		Feed:          service.NewFeedService(db, index),
		Trending:      trending,
		Hashtags:      hashtags,
		Notifications: notifications,
		Messages:      service.NewMessageService(db, clk, dispatcher),
		Jobs:          sched,
	})
	waitJobs := sched.Start(ctx)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewStore(rdb, cfg.RateLimit.Window, cfg.RateLimit.Max)
	}

	router := api.NewRouter(h, api.Options{
		Mode:        cfg.Server.Mode,
		ServiceName: cfg.Tracing.ServiceName,
		GlobalRPS:   cfg.Server.GlobalRPS,
		GlobalBurst: cfg.Server.GlobalBurst,
		AdminToken:  cfg.Server.AdminToken,
		Identity:    jwt,
		Limiter:     limiter,
		Health: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.Strings("jobs", sched.Jobs()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server stopped", zap.Error(serveErr))
		}
	}
	stop()
	logger.Info("shutting down")

	// 先停 HTTP，再排空通知队列，最后等调度任务退出
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err), zap.Int("pending", dispatcher.QueueLen()))
	}
	waitJobs()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return serveErr
}
