package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// 推文计数列
const (
	ColTweetLikes     = "likes_count"
	ColTweetRetweets  = "retweets_count"
	ColTweetReplies   = "replies_count"
	ColTweetQuotes    = "quotes_count"
	ColTweetViews     = "views_count"
	ColTweetBookmarks = "bookmarks_count"
)

type TweetRepository interface {
	Create(ctx context.Context, t *model.Tweet) error
	Get(ctx context.Context, id string) (*model.Tweet, error)
	GetMany(ctx context.Context, ids []string) (map[string]*model.Tweet, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	SoftDelete(ctx context.Context, id string) (bool, error)
	IncrStat(ctx context.Context, id, column string, delta int64) (bool, error)
	IncrViews(ctx context.Context, id string) error
	Timeline(ctx context.Context, authorIDs []string, offset, limit int) ([]*model.Tweet, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Tweet, error)
	ListLikedBy(ctx context.Context, userID string, offset, limit int) ([]*model.Tweet, error)
	ListThread(ctx context.Context, threadID string, offset, limit int) ([]*model.Tweet, error)
	ListDirectReplies(ctx context.Context, parentID string, limit int) ([]*model.Tweet, error)
	ListByHashtag(ctx context.Context, tag string, limit int) ([]*model.Tweet, error)
	ReplaceHashtags(ctx context.Context, tweetID string, rows []model.TweetHashtag) error
}

type tweetRepository struct {
	db *gorm.DB
}

func NewTweetRepository(db *gorm.DB) TweetRepository { return &tweetRepository{db: db} }

// live 未软删除的推文
func (r *tweetRepository) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Tweet{}).Where("tweets.is_deleted = ?", false)
}

func (r *tweetRepository) Create(ctx context.Context, t *model.Tweet) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// Get 只返回未删除的推文
func (r *tweetRepository) Get(ctx context.Context, id string) (*model.Tweet, error) {
	var t model.Tweet
	if err := r.live(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tweetRepository) GetMany(ctx context.Context, ids []string) (map[string]*model.Tweet, error) {
	out := make(map[string]*model.Tweet, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*model.Tweet
	if err := r.live(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.ID] = t
	}
	return out, nil
}

func (r *tweetRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.live(ctx).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete 已删除的再删一次返回 false
func (r *tweetRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := r.live(ctx).Where("id = ?", id).UpdateColumn("is_deleted", true)
	return res.RowsAffected == 1, res.Error
}

func (r *tweetRepository) IncrStat(ctx context.Context, id, column string, delta int64) (bool, error) {
	return incrColumn(r.db.WithContext(ctx).Model(&model.Tweet{}), id, column, delta)
}

// IncrViews 浏览数只求尽力而为
func (r *tweetRepository) IncrViews(ctx context.Context, id string) error {
	return r.live(ctx).Where("id = ?", id).
		UpdateColumn(ColTweetViews, gorm.Expr(ColTweetViews+" + 1")).Error
}

// Timeline 给定作者集合的推文，作者需处于可见状态
func (r *tweetRepository) Timeline(ctx context.Context, authorIDs []string, offset, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	if len(authorIDs) == 0 {
		return out, nil
	}
	visible := r.db.WithContext(ctx).Model(&model.User{}).Select("id").
		Where("is_active = ? AND is_suspended = ?", true, false)
	err := r.live(ctx).
		Where("tweets.author_id IN ?", authorIDs).
		Where("tweets.author_id IN (?)", visible).
		Order("tweets.created_at DESC").Order("tweets.id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *tweetRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.live(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// ListLikedBy 按点赞时间倒序
func (r *tweetRepository) ListLikedBy(ctx context.Context, userID string, offset, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.live(ctx).
		Joins("JOIN likes ON likes.tweet_id = tweets.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC").Order("tweets.id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// ListThread 线程内的回复，按层级再按时间
func (r *tweetRepository) ListThread(ctx context.Context, threadID string, offset, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.live(ctx).
		Where("kind = ? AND reply_thread_id = ?", model.KindReply, threadID).
		Order("reply_level ASC").Order("created_at ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *tweetRepository) ListDirectReplies(ctx context.Context, parentID string, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.live(ctx).
		Where("kind = ? AND reply_parent_tweet_id = ?", model.KindReply, parentID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListByHashtag 最近的公开推文
func (r *tweetRepository) ListByHashtag(ctx context.Context, tag string, limit int) ([]*model.Tweet, error) {
	var out []*model.Tweet
	err := r.live(ctx).
		Joins("JOIN tweet_hashtags th ON th.tweet_id = tweets.id").
		Where("th.hashtag = ? AND tweets.visibility = ?", tag, "public").
		Order("tweets.created_at DESC").Order("tweets.id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ReplaceHashtags 重写推文的话题展开行
func (r *tweetRepository) ReplaceHashtags(ctx context.Context, tweetID string, rows []model.TweetHashtag) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("tweet_id = ?", tweetID).Delete(&model.TweetHashtag{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
