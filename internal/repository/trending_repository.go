package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// HashtagActivity 一个话题在 7 天窗口内的聚合
type HashtagActivity struct {
	Hashtag string `gorm:"column:hashtag"`
	Total   int64  `gorm:"column:total"`
	Authors int64  `gorm:"column:authors"`
	Last1h  int64  `gorm:"column:last_1h"`
	Last6h  int64  `gorm:"column:last_6h"`
	Last24h int64  `gorm:"column:last_24h"`
}

// UserEngagement 单个作者窗口内公开推文的互动合计
type UserEngagement struct {
	UserID     string `gorm:"column:user_id"`
	Engagement int64  `gorm:"column:engagement"`
	TweetCount int64  `gorm:"column:tweet_count"`
}

// ActivityWindow 统计的时间边界，均相对同一个 now
type ActivityWindow struct {
	Now         time.Time
	MinActivity int
	Location    string
}

type TrendingRepository interface {
	ScanActivity(ctx context.Context, w ActivityWindow) ([]HashtagActivity, error)
	SampleTweets(ctx context.Context, tag, location string, since, until time.Time, limit int) ([]*model.Tweet, error)
	TopTagsByFollowees(ctx context.Context, userID string, since time.Time, limit int) ([]string, error)
	TopAuthorsByEngagement(ctx context.Context, since, until time.Time, limit int) ([]UserEngagement, error)

	Get(ctx context.Context, tag, location string) (*model.TrendingTopic, error)
	Create(ctx context.Context, t *model.TrendingTopic) error
	Save(ctx context.Context, t *model.TrendingTopic) error
	DeleteStale(ctx context.Context, location string, keep []string) (int64, error)
	ListForRanking(ctx context.Context, location string) ([]*model.TrendingTopic, error)
	SetRank(ctx context.Context, id string, rank int) error
	Top(ctx context.Context, location, category string, since time.Time, limit int) ([]*model.TrendingTopic, error)
	ByHashtags(ctx context.Context, location string, tags []string, since time.Time) ([]*model.TrendingTopic, error)
	Locations(ctx context.Context, since time.Time) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type trendingRepository struct {
	db *gorm.DB
}

func NewTrendingRepository(db *gorm.DB) TrendingRepository { return &trendingRepository{db: db} }

const windowCount = "SUM(CASE WHEN th.created_at >= ? THEN 1 ELSE 0 END)"

func (r *trendingRepository) hits(ctx context.Context, location string) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("tweet_hashtags AS th").
		Joins("JOIN tweets t ON t.id = th.tweet_id").
		Where("t.is_deleted = ?", false)
	if location != "" && location != model.LocationGlobal {
		q = q.Where("th.location_code = ?", location)
	}
	return q
}

// ScanActivity 按话题分组统计 1h/6h/24h/7d 用量与作者数，24h 低于门槛的直接过滤
func (r *trendingRepository) ScanActivity(ctx context.Context, w ActivityWindow) ([]HashtagActivity, error) {
	h1 := w.Now.Add(-time.Hour)
	h6 := w.Now.Add(-6 * time.Hour)
	h24 := w.Now.Add(-24 * time.Hour)
	d7 := w.Now.Add(-7 * 24 * time.Hour)

	var out []HashtagActivity
	err := r.hits(ctx, w.Location).
		Select("th.hashtag AS hashtag, COUNT(*) AS total, COUNT(DISTINCT th.author_id) AS authors, "+
			windowCount+" AS last_1h, "+windowCount+" AS last_6h, "+windowCount+" AS last_24h", h1, h6, h24).
		Where("th.created_at >= ? AND th.created_at <= ?", d7, w.Now).
		Group("th.hashtag").
		Having(windowCount+" >= ?", h24, w.MinActivity).
		Order("th.hashtag").
		Scan(&out).Error
	return out, err
}

// SampleTweets 互动量（点赞+转推）最高的几条
func (r *trendingRepository) SampleTweets(ctx context.Context, tag, location string, since, until time.Time, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.hits(ctx, location).
		Select("t.*").
		Where("th.hashtag = ? AND th.created_at >= ? AND th.created_at <= ?", tag, since, until).
		Order("(t.likes_count + t.retweets_count) DESC").Order("t.created_at DESC").Order("t.id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TopTagsByFollowees 已关注用户近期最常用的话题
func (r *trendingRepository) TopTagsByFollowees(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	db := r.db.WithContext(ctx)
	followees := db.Model(&model.Follow{}).Select("followee_id").
		Where("follower_id = ? AND status = ?", userID, model.FollowAccepted)
	var tags []string
	err := r.hits(ctx, model.LocationGlobal).
		Where("th.author_id IN (?) AND th.created_at >= ?", followees, since).
		Group("th.hashtag").
		Order("COUNT(*) DESC").Order("th.hashtag ASC").
		Limit(limit).
		Pluck("th.hashtag", &tags).Error
	return tags, err
}

const engagementSum = "SUM(t.likes_count + t.retweets_count + t.replies_count)"

// TopAuthorsByEngagement 按平均每条推文互动数降序，只统计可见账号的公开推文
func (r *trendingRepository) TopAuthorsByEngagement(ctx context.Context, since, until time.Time, limit int) ([]UserEngagement, error) {
	var out []UserEngagement
	err := r.db.WithContext(ctx).
		Table("tweets AS t").
		Joins("JOIN users u ON u.id = t.author_id").
		Select("t.author_id AS user_id, "+engagementSum+" AS engagement, COUNT(*) AS tweet_count").
		Where("t.is_deleted = ? AND t.visibility = ?", false, "public").
		Where("t.created_at >= ? AND t.created_at <= ?", since, until).
		Where("u.is_active = ? AND u.is_suspended = ?", true, false).
		Group("t.author_id").
		Order(engagementSum + " * 1.0 / COUNT(*) DESC").Order("t.author_id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// Get 不存在时返回 nil, nil
func (r *trendingRepository) Get(ctx context.Context, tag, location string) (*model.TrendingTopic, error) {
	var t model.TrendingTopic
	err := r.db.WithContext(ctx).Where("hashtag = ? AND location = ?", tag, location).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trendingRepository) Create(ctx context.Context, t *model.TrendingTopic) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *trendingRepository) Save(ctx context.Context, t *model.TrendingTopic) error {
	return r.db.WithContext(ctx).Save(t).Error
}

// DeleteStale 删除该地区不在 keep 中的快照
func (r *trendingRepository) DeleteStale(ctx context.Context, location string, keep []string) (int64, error) {
	q := r.db.WithContext(ctx).Where("location = ?", location)
	if len(keep) > 0 {
		q = q.Where("hashtag NOT IN ?", keep)
	}
	res := q.Delete(&model.TrendingTopic{})
	return res.RowsAffected, res.Error
}

// ListForRanking 分数降序，同分按话题字典序
func (r *trendingRepository) ListForRanking(ctx context.Context, location string) ([]*model.TrendingTopic, error) {
	var out []*model.TrendingTopic
	err := r.db.WithContext(ctx).
		Where("location = ? AND is_blocked = ?", location, false).
		Order("trending_score DESC").Order("hashtag ASC").
		Find(&out).Error
	return out, err
}

func (r *trendingRepository) SetRank(ctx context.Context, id string, rank int) error {
	return r.db.WithContext(ctx).Model(&model.TrendingTopic{}).Where("id = ?", id).UpdateColumn("rank", rank).Error
}

func (r *trendingRepository) Top(ctx context.Context, location, category string, since time.Time, limit int) ([]*model.TrendingTopic, error) {
	q := r.db.WithContext(ctx).
		Where("location = ? AND is_blocked = ?", location, false).
		Where("rank >= 1 AND rank <= ?", model.MaxTrendingRank).
		Where("last_updated >= ?", since)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []*model.TrendingTopic
	err := q.Order("rank ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *trendingRepository) ByHashtags(ctx context.Context, location string, tags []string, since time.Time) ([]*model.TrendingTopic, error) {
	var out []*model.TrendingTopic
	if len(tags) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Where("location = ? AND hashtag IN ? AND is_blocked = ?", location, tags, false).
		Where("last_updated >= ?", since).
		Order("trending_score DESC").Order("hashtag ASC").
		Find(&out).Error
	return out, err
}

func (r *trendingRepository) Locations(ctx context.Context, since time.Time) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.TrendingTopic{}).
		Where("last_updated >= ?", since).
		Distinct("location").
		Order("location").
		Pluck("location", &out).Error
	return out, err
}

func (r *trendingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_updated < ?", cutoff).Delete(&model.TrendingTopic{})
	return res.RowsAffected, res.Error
}
