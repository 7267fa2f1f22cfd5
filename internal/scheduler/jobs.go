package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/socialgraph/config"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

const (
	JobTrending     = "trending_recompute"
	JobResetDaily   = "hashtag_reset_today"
	JobResetWeekly  = "hashtag_reset_week"
	JobResetMonthly = "hashtag_reset_month"
	JobRetention    = "retention_sweep"
)

// Register 把各个后台任务挂到调度器上
func Register(s *Scheduler, cfg *config.Config, trending service.TrendingService, hashtags service.HashtagService, retention service.RetentionService) error {
	if err := s.Add(JobTrending, cfg.Trending.Cron, func(ctx context.Context) error {
		counts, err := trending.Recompute(ctx)
		if err == nil {
			logger.Info("trending recomputed", zap.Any("topics", counts))
		}
		return err
	}); err != nil {
		return err
	}

	resets := []struct {
		name, cron string
		window     model.HashtagWindow
	}{
		{JobResetDaily, cfg.Hashtag.DailyResetCron, model.WindowToday},
		{JobResetWeekly, cfg.Hashtag.WeeklyResetCron, model.WindowWeek},
		{JobResetMonthly, cfg.Hashtag.MonthlyResetCron, model.WindowMonth},
	}
	for _, r := range resets {
		w := r.window
		if err := s.Add(r.name, r.cron, func(ctx context.Context) error {
			n, err := hashtags.ResetWindow(ctx, w)
			if err == nil {
				logger.Info("hashtag window reset", zap.String("window", string(w)), zap.Int64("rows", n))
			}
			return err
		}); err != nil {
			return err
		}
	}

	return s.Add(JobRetention, cfg.Retention.Cron, func(ctx context.Context) error {
		_, err := retention.Sweep(ctx)
		return err
	})
}
