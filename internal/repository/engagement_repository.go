package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// EngagementRepository 点赞、转推、收藏三类用户-推文边
type EngagementRepository interface {
	InsertLike(ctx context.Context, l *model.Like) (bool, error)
	DeleteLike(ctx context.Context, userID, tweetID string) (bool, error)
	LikedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error)
	RecentLikers(ctx context.Context, tweetID string, limit int) ([]string, error)
	CountLikes(ctx context.Context, tweetID string) (int64, error)

	FindRetweet(ctx context.Context, userID, tweetID string, kind model.RetweetKind) (*model.Retweet, error)
	InsertRetweet(ctx context.Context, rt *model.Retweet) (bool, error)
	DeleteRetweet(ctx context.Context, id string) (bool, error)
	RetweetedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error)
	CountRetweets(ctx context.Context, tweetID string, kind model.RetweetKind) (int64, error)

	InsertBookmark(ctx context.Context, b *model.Bookmark) (bool, error)
	DeleteBookmark(ctx context.Context, userID, tweetID string) (bool, error)
	BookmarkedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error)
}

type engagementRepository struct {
	db *gorm.DB
}

func NewEngagementRepository(db *gorm.DB) EngagementRepository { return &engagementRepository{db: db} }

// insertEdge 唯一键冲突时不报错，返回 false
func (r *engagementRepository) insertEdge(ctx context.Context, edge any) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
	return res.RowsAffected == 1, res.Error
}

func (r *engagementRepository) deleteEdge(ctx context.Context, edge any, userID, tweetID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND tweet_id = ?", userID, tweetID).Delete(edge)
	return res.RowsAffected == 1, res.Error
}

func (r *engagementRepository) edgeSet(ctx context.Context, edge any, userID string, tweetIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(tweetIDs))
	if userID == "" || len(tweetIDs) == 0 {
		return out, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(edge).
		Where("user_id = ? AND tweet_id IN ?", userID, tweetIDs).
		Distinct("tweet_id").
		Pluck("tweet_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *engagementRepository) InsertLike(ctx context.Context, l *model.Like) (bool, error) {
	return r.insertEdge(ctx, l)
}

func (r *engagementRepository) DeleteLike(ctx context.Context, userID, tweetID string) (bool, error) {
	return r.deleteEdge(ctx, &model.Like{}, userID, tweetID)
}

func (r *engagementRepository) LikedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error) {
	return r.edgeSet(ctx, &model.Like{}, userID, tweetIDs)
}

func (r *engagementRepository) RecentLikers(ctx context.Context, tweetID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("tweet_id = ?", tweetID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *engagementRepository) CountLikes(ctx context.Context, tweetID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).Where("tweet_id = ?", tweetID).Count(&n).Error
	return n, err
}

// FindRetweet 不存在时返回 nil, nil
func (r *engagementRepository) FindRetweet(ctx context.Context, userID, tweetID string, kind model.RetweetKind) (*model.Retweet, error) {
	var rt model.Retweet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tweet_id = ? AND kind = ?", userID, tweetID, kind).
		Take(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *engagementRepository) InsertRetweet(ctx context.Context, rt *model.Retweet) (bool, error) {
	return r.insertEdge(ctx, rt)
}

func (r *engagementRepository) DeleteRetweet(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Retweet{})
	return res.RowsAffected == 1, res.Error
}

func (r *engagementRepository) RetweetedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error) {
	return r.edgeSet(ctx, &model.Retweet{}, userID, tweetIDs)
}

func (r *engagementRepository) CountRetweets(ctx context.Context, tweetID string, kind model.RetweetKind) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Retweet{}).
		Where("tweet_id = ? AND kind = ?", tweetID, kind).
		Count(&n).Error
	return n, err
}

func (r *engagementRepository) InsertBookmark(ctx context.Context, b *model.Bookmark) (bool, error) {
	return r.insertEdge(ctx, b)
}

func (r *engagementRepository) DeleteBookmark(ctx context.Context, userID, tweetID string) (bool, error) {
	return r.deleteEdge(ctx, &model.Bookmark{}, userID, tweetID)
}

func (r *engagementRepository) BookmarkedSet(ctx context.Context, userID string, tweetIDs []string) (map[string]bool, error) {
	return r.edgeSet(ctx, &model.Bookmark{}, userID, tweetIDs)
}
