package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

// SweepResult 一次过期清理删除的行数
type SweepResult struct {
	Notifications int64 `json:"notifications"`
	Trending      int64 `json:"trending"`
}

// RetentionService 通知 30 天、趋势快照 7 天过期
type RetentionService interface {
	Sweep(ctx context.Context) (SweepResult, error)
}

type retentionService struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewRetentionService(db *gorm.DB, clk clock.Clock) RetentionService {
	return &retentionService{db: db, clock: clk}
}

func (s *retentionService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.clock.Now()

	err := apperr.Retry(ctx, func() error {
		n, err := repository.NewNotificationRepository(s.db).DeleteOlderThan(ctx, now.Add(-model.NotificationTTL))
		res.Notifications = n
		return err
	})
	if err != nil {
		return res, err
	}
	err = apperr.Retry(ctx, func() error {
		n, err := repository.NewTrendingRepository(s.db).DeleteOlderThan(ctx, now.Add(-model.TrendingTTL))
		res.Trending = n
		return err
	})
	if err != nil {
		return res, err
	}
	logger.Info("retention sweep done",
		zap.Int64("notifications", res.Notifications),
		zap.Int64("trending", res.Trending))
	return res, nil
}
