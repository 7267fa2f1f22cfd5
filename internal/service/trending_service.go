package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

const (
	DefaultMinActivity   = 5
	DefaultTrendingLimit = 10
	sampleTweetCount     = 3
)

// TrendingCache getTrending 结果缓存，按地区整体失效。
// Version 在回源前读取，Set 只在版本未变时写入
type TrendingCache interface {
	Get(ctx context.Context, location, category string, limit int) ([]*model.TrendingTopic, bool, error)
	Version(ctx context.Context, location string) (int64, error)
	Set(ctx context.Context, location, category string, limit int, version int64, topics []*model.TrendingTopic) error
	Invalidate(ctx context.Context, location string) error
}

// TrendingOptions 重算参数
type TrendingOptions struct {
	Locations   []string
	MinActivity int
}

// TrendingUser 近 24 小时互动率较高的作者
type TrendingUser struct {
	User            model.UserSummary `json:"user"`
	TweetCount      int64             `json:"tweet_count"`
	TotalEngagement int64             `json:"total_engagement"`
	EngagementRate  float64           `json:"engagement_rate"`
}

// TrendingService 趋势话题：按滑动窗口重算分数并整体重排名次
type TrendingService interface {
	Recompute(ctx context.Context) (map[string]int, error)
	RecomputeLocation(ctx context.Context, location string) ([]*model.TrendingTopic, error)
	GetTrending(ctx context.Context, location, category string, limit int) ([]*model.TrendingTopic, error)
	Locations(ctx context.Context) ([]string, error)
	Personalized(ctx context.Context, userID string, limit int) ([]*model.TrendingTopic, error)
	TrendingUsers(ctx context.Context, limit int) ([]TrendingUser, error)
}

type trendingService struct {
	db    *gorm.DB
	clock clock.Clock
	cache TrendingCache
	opts  TrendingOptions
}

func NewTrendingService(db *gorm.DB, clk clock.Clock, cache TrendingCache, opts TrendingOptions) TrendingService {
	if len(opts.Locations) == 0 {
		opts.Locations = []string{model.LocationGlobal}
	}
	if opts.MinActivity <= 0 {
		opts.MinActivity = DefaultMinActivity
	}
	return &trendingService{db: db, clock: clk, cache: cache, opts: opts}
}

func normalizeLocation(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	if loc == "" {
		return model.LocationGlobal
	}
	return loc
}

// Recompute 依次重算所有配置的地区，返回各地区上榜数量
func (s *trendingService) Recompute(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(s.opts.Locations))
	for _, loc := range s.opts.Locations {
		topics, err := s.RecomputeLocation(ctx, loc)
		if err != nil {
			return out, err
		}
		out[normalizeLocation(loc)] = len(topics)
	}
	return out, nil
}

// RecomputeLocation 同一语料、同一 now 下重复执行结果完全一致
func (s *trendingService) RecomputeLocation(ctx context.Context, location string) ([]*model.TrendingTopic, error) {
	location = normalizeLocation(location)
	start := time.Now()
	now := s.clock.Now()

	var ranked []*model.TrendingTopic
	err := apperr.Retry(ctx, func() error {
		ranked = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			trends := repository.NewTrendingRepository(tx)
			acts, err := trends.ScanActivity(ctx, repository.ActivityWindow{
				Now:         now,
				MinActivity: s.opts.MinActivity,
				Location:    location,
			})
			if err != nil {
				return err
			}
			tags := make([]string, len(acts))
			for i, a := range acts {
				tags[i] = a.Hashtag
			}
			meta, err := repository.NewHashtagRepository(tx).GetMany(ctx, tags)
			if err != nil {
				return err
			}

			keep := make([]string, 0, len(acts))
			for _, a := range acts {
				h := meta[a.Hashtag]
				if h != nil && h.IsBlocked {
					continue
				}
				if err := s.upsert(ctx, tx, trends, location, a, h, now); err != nil {
					return err
				}
				keep = append(keep, a.Hashtag)
			}
			if _, err := trends.DeleteStale(ctx, location, keep); err != nil {
				return err
			}

			ranked, err = rerank(ctx, trends, location)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveRecompute(location, start, len(ranked))
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, location); err != nil {
			logger.Warn("trending cache invalidate failed", zap.String("location", location), zap.Error(err))
		}
	}
	return ranked, nil
}

// upsert 写入单个话题的窗口计数、分数与示例推文
func (s *trendingService) upsert(ctx context.Context, tx *gorm.DB, trends repository.TrendingRepository, location string, a repository.HashtagActivity, h *model.Hashtag, now time.Time) error {
	samples, err := s.samples(ctx, tx, trends, a.Hashtag, location, now)
	if err != nil {
		return err
	}
	t, err := trends.Get(ctx, a.Hashtag, location)
	if err != nil {
		return err
	}
	isNew := t == nil
	if isNew {
		t = &model.TrendingTopic{ID: uuid.New().String(), Hashtag: a.Hashtag, Location: location, FirstSeen: now}
	}
	t.Category = "general"
	t.IsPromoted = false
	if h != nil {
		t.Category = h.Category
		t.IsPromoted = h.IsPromoted
	}
	t.TweetsCount = a.Total
	t.UsersCount = a.Authors
	t.Last1Hour = a.Last1h
	t.Last6Hours = a.Last6h
	t.Last24Hours = a.Last24h
	t.Last7Days = a.Total
	t.TrendingScore = model.TrendingScore(a.Last1h, a.Last24h, a.Total, a.Authors)
	if a.Last1h > t.PeakTweetsPerHour {
		t.PeakTweetsPerHour = a.Last1h
		peak := now
		t.PeakTime = &peak
	}
	t.SampleTweets = samples
	t.LastUpdated = now
	if isNew {
		return trends.Create(ctx, t)
	}
	return trends.Save(ctx, t)
}

func (s *trendingService) samples(ctx context.Context, tx *gorm.DB, trends repository.TrendingRepository, tag, location string, now time.Time) ([]model.SampleTweet, error) {
	rows, err := trends.SampleTweets(ctx, tag, location, now.Add(-model.TrendingTTL), now, sampleTweetCount)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, t := range rows {
		ids[i] = t.AuthorID
	}
	authors, err := repository.NewUserRepository(tx).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.SampleTweet, len(rows))
	for i, t := range rows {
		out[i] = model.SampleTweet{
			TweetID:       t.ID,
			UserID:        t.AuthorID,
			Content:       t.Content,
			LikesCount:    t.Stats.LikesCount,
			RetweetsCount: t.Stats.RetweetsCount,
			CreatedAt:     t.CreatedAt,
		}
		if u, ok := authors[t.AuthorID]; ok {
			out[i].Username = u.Username
		}
	}
	return out, nil
}

// rerank 分数降序、同分按话题字典序，名次从 1 连续分配
func rerank(ctx context.Context, trends repository.TrendingRepository, location string) ([]*model.TrendingTopic, error) {
	topics, err := trends.ListForRanking(ctx, location)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].TrendingScore != topics[j].TrendingScore {
			return topics[i].TrendingScore > topics[j].TrendingScore
		}
		return topics[i].Hashtag < topics[j].Hashtag
	})
	for i, t := range topics {
		rank := i + 1
		if t.Rank == rank {
			continue
		}
		if err := trends.SetRank(ctx, t.ID, rank); err != nil {
			return nil, err
		}
		t.Rank = rank
	}
	return topics, nil
}

func (s *trendingService) GetTrending(ctx context.Context, location, category string, limit int) ([]*model.TrendingTopic, error) {
	location = normalizeLocation(location)
	category = strings.ToLower(strings.TrimSpace(category))
	if category != "" && !model.ValidCategory(category) {
		return nil, apperr.Invalid("unknown category")
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > model.MaxTrendingRank {
		limit = model.MaxTrendingRank
	}

	fill := false
	var version int64
	if s.cache != nil {
		topics, ok, err := s.cache.Get(ctx, location, category, limit)
		if err != nil {
			logger.Warn("trending cache read failed", zap.String("location", location), zap.Error(err))
		} else if ok {
			return topics, nil
		}
		if version, err = s.cache.Version(ctx, location); err == nil {
			fill = true
		}
	}
	topics, err := repository.NewTrendingRepository(s.db).Top(ctx, location, category, s.clock.Now().Add(-model.TrendingTTL), limit)
	if err != nil {
		return nil, err
	}
	if fill {
		if err := s.cache.Set(ctx, location, category, limit, version, topics); err != nil {
			logger.Warn("trending cache write failed", zap.String("location", location), zap.Error(err))
		}
	}
	return topics, nil
}

func (s *trendingService) Locations(ctx context.Context) ([]string, error) {
	return repository.NewTrendingRepository(s.db).Locations(ctx, s.clock.Now().Add(-model.TrendingTTL))
}

// Personalized 关注的人最近常用话题中当前在榜的那些
func (s *trendingService) Personalized(ctx context.Context, userID string, limit int) ([]*model.TrendingTopic, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > model.MaxTrendingRank {
		limit = model.MaxTrendingRank
	}
	now := s.clock.Now()
	trends := repository.NewTrendingRepository(s.db)
	tags, err := trends.TopTagsByFollowees(ctx, userID, now.Add(-model.TrendingTTL), model.MaxTrendingRank)
	if err != nil {
		return nil, err
	}
	topics, err := trends.ByHashtags(ctx, model.LocationGlobal, tags, now.Add(-model.TrendingTTL))
	if err != nil {
		return nil, err
	}
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// TrendingUsers 互动率 = (点赞+转推+回复) / 推文数，窗口为最近 24 小时
func (s *trendingService) TrendingUsers(ctx context.Context, limit int) ([]TrendingUser, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > model.MaxTrendingRank {
		limit = model.MaxTrendingRank
	}
	now := s.clock.Now()
	rows, err := repository.NewTrendingRepository(s.db).TopAuthorsByEngagement(ctx, now.Add(-24*time.Hour), now, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users, err := repository.NewUserRepository(s.db).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]TrendingUser, 0, len(rows))
	for _, r := range rows {
		u, ok := users[r.UserID]
		if !ok || r.TweetCount == 0 {
			continue
		}
		out = append(out, TrendingUser{
			User:            u.Summary(),
			TweetCount:      r.TweetCount,
			TotalEngagement: r.Engagement,
			EngagementRate:  float64(r.Engagement) / float64(r.TweetCount),
		})
	}
	return out, nil
}
