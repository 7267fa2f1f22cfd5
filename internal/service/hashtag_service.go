package service

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/internal/textutil"
)

var tagPrefixRe = regexp.MustCompile(`^[a-z0-9_]+$`)

const (
	hashtagRecentTweets = 20
	hashtagRelated      = 5
	DefaultSuggestLimit = 10
)

// HashtagDetails 话题详情：快照、累计与窗口计数、最近推文、相关话题
type HashtagDetails struct {
	Hashtag      string                  `json:"hashtag"`
	Trending     *model.TrendingTopic    `json:"trending,omitempty"`
	Stats        *model.Hashtag          `json:"stats"`
	RecentTweets []*FeedItem             `json:"recent_tweets"`
	Related      []model.HashtagRelation `json:"related"`
}

// HashtagFlags 运营侧可改字段，nil 表示不修改
type HashtagFlags struct {
	Category    *string `json:"category"`
	Description *string `json:"description"`
	IsBlocked   *bool   `json:"is_blocked"`
	IsPromoted  *bool   `json:"is_promoted"`
}

func (f HashtagFlags) Validate() error {
	if f.Category != nil && !model.ValidCategory(*f.Category) {
		return apperr.Invalid("unknown category")
	}
	if f.Description != nil && len([]rune(*f.Description)) > 200 {
		return apperr.Invalid("description too long")
	}
	return nil
}

func (f HashtagFlags) columns() map[string]any {
	out := map[string]any{}
	if f.Category != nil {
		out["category"] = *f.Category
	}
	if f.Description != nil {
		out["description"] = *f.Description
	}
	if f.IsBlocked != nil {
		out["is_blocked"] = *f.IsBlocked
	}
	if f.IsPromoted != nil {
		out["is_promoted"] = *f.IsPromoted
	}
	return out
}

type HashtagService interface {
	Details(ctx context.Context, tag, location, viewerID string) (*HashtagDetails, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]*model.Hashtag, error)
	ResetWindow(ctx context.Context, w model.HashtagWindow) (int64, error)
	SetFlags(ctx context.Context, tag string, f HashtagFlags) error
}

type hashtagService struct {
	db    *gorm.DB
	clock clock.Clock
	feed  *enricher
}

func NewHashtagService(db *gorm.DB, clk clock.Clock) HashtagService {
	return &hashtagService{db: db, clock: clk, feed: &enricher{db: db}}
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

func (s *hashtagService) Details(ctx context.Context, tag, location, viewerID string) (*HashtagDetails, error) {
	tag = normalizeTag(tag)
	if tag == "" {
		return nil, apperr.Invalid("hashtag is required")
	}
	stats, err := repository.NewHashtagRepository(s.db).Get(ctx, tag)
	if err != nil {
		return nil, apperr.FromStore(err, "hashtag not found")
	}

	trends := repository.NewTrendingRepository(s.db)
	snap, err := trends.Get(ctx, tag, normalizeLocation(location))
	if err != nil {
		return nil, err
	}
	if snap != nil && (snap.IsBlocked || snap.LastUpdated.Before(s.clock.Now().Add(-model.TrendingTTL))) {
		snap = nil
	}

	rows, err := repository.NewTweetRepository(s.db).ListByHashtag(ctx, tag, hashtagRecentTweets)
	if err != nil {
		return nil, err
	}
	recent, err := s.feed.enrich(ctx, viewerID, rows)
	if err != nil {
		return nil, err
	}
	related, err := repository.NewHashtagRepository(s.db).Related(ctx, tag, hashtagRelated)
	if err != nil {
		return nil, err
	}
	return &HashtagDetails{Hashtag: tag, Trending: snap, Stats: stats, RecentTweets: recent, Related: related}, nil
}

func (s *hashtagService) Suggest(ctx context.Context, prefix string, limit int) ([]*model.Hashtag, error) {
	prefix = normalizeTag(prefix)
	if prefix == "" || len(prefix) > textutil.MaxTagLength {
		return nil, apperr.Invalid("invalid hashtag prefix")
	}
	if !tagPrefixRe.MatchString(prefix) {
		return nil, apperr.Invalid("invalid hashtag prefix")
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return repository.NewHashtagRepository(s.db).Suggest(ctx, prefix, limit)
}

// ResetWindow 只由定时任务调用
func (s *hashtagService) ResetWindow(ctx context.Context, w model.HashtagWindow) (int64, error) {
	switch w {
	case model.WindowToday, model.WindowWeek, model.WindowMonth:
	default:
		return 0, apperr.Invalid("unknown hashtag window")
	}
	var n int64
	err := apperr.Retry(ctx, func() error {
		var err error
		n, err = repository.NewHashtagRepository(s.db).ResetWindow(ctx, w)
		return err
	})
	return n, err
}

func (s *hashtagService) SetFlags(ctx context.Context, tag string, f HashtagFlags) error {
	tag = normalizeTag(tag)
	if err := f.Validate(); err != nil {
		return err
	}
	cols := f.columns()
	if len(cols) == 0 {
		return apperr.Invalid("nothing to update")
	}
	return apperr.FromStore(repository.NewHashtagRepository(s.db).SetFlags(ctx, tag, cols), "hashtag not found")
}
