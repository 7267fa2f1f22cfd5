package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// Suggestion 推荐关注候选：Via 为连接它的已关注用户数
type Suggestion struct {
	UserID         string
	Via            int64
	FollowersCount int64
}

type FollowRepository interface {
	Create(ctx context.Context, f *model.Follow) (bool, error)
	Get(ctx context.Context, id string) (*model.Follow, error)
	Find(ctx context.Context, followerID, followeeID string) (*model.Follow, error)
	FindForUpdate(ctx context.Context, followerID, followeeID string) (*model.Follow, error)
	Delete(ctx context.Context, id string, status model.FollowStatus) (bool, error)
	Accept(ctx context.Context, id string) (bool, error)
	ListFollowers(ctx context.Context, followeeID string, offset, limit int) ([]*model.Follow, error)
	ListFollowings(ctx context.Context, followerID string, offset, limit int) ([]*model.Follow, error)
	ListPending(ctx context.Context, followeeID string, offset, limit int) ([]*model.Follow, error)
	FolloweeIDs(ctx context.Context, followerID string) ([]string, error)
	MutualIDs(ctx context.Context, userA, userB string, limit int) ([]string, error)
	Suggest(ctx context.Context, userID string, limit int) ([]Suggestion, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

// Create 插入关注边；并发重复插入被唯一键吸收，返回 false
func (r *followRepository) Create(ctx context.Context, f *model.Follow) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f)
	return res.RowsAffected == 1, res.Error
}

func (r *followRepository) Get(ctx context.Context, id string) (*model.Follow, error) {
	var f model.Follow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// Find 不存在时返回 nil, nil
func (r *followRepository) Find(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	return r.find(r.db.WithContext(ctx), followerID, followeeID)
}

func (r *followRepository) FindForUpdate(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), followerID, followeeID)
}

func (r *followRepository) find(q *gorm.DB, followerID, followeeID string) (*model.Follow, error) {
	var f model.Follow
	err := q.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete 仅当边仍处于给定状态时删除
func (r *followRepository) Delete(ctx context.Context, id string, status model.FollowStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&model.Follow{})
	return res.RowsAffected == 1, res.Error
}

// Accept pending -> accepted，重复调用返回 false
func (r *followRepository) Accept(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("id = ? AND status = ?", id, model.FollowPending).
		Update("status", model.FollowAccepted)
	return res.RowsAffected == 1, res.Error
}

func (r *followRepository) ListFollowers(ctx context.Context, followeeID string, offset, limit int) ([]*model.Follow, error) {
	return r.list(ctx, "followee_id = ?", followeeID, model.FollowAccepted, offset, limit)
}

func (r *followRepository) ListFollowings(ctx context.Context, followerID string, offset, limit int) ([]*model.Follow, error) {
	return r.list(ctx, "follower_id = ?", followerID, model.FollowAccepted, offset, limit)
}

func (r *followRepository) ListPending(ctx context.Context, followeeID string, offset, limit int) ([]*model.Follow, error) {
	return r.list(ctx, "followee_id = ?", followeeID, model.FollowPending, offset, limit)
}

func (r *followRepository) list(ctx context.Context, cond, userID string, status model.FollowStatus, offset, limit int) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where(cond, userID).
		Where("status = ?", status).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) FolloweeIDs(ctx context.Context, followerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ? AND status = ?", followerID, model.FollowAccepted).
		Order("followee_id").
		Pluck("followee_id", &ids).Error
	return ids, err
}

// MutualIDs 双方都已关注的用户
func (r *followRepository) MutualIDs(ctx context.Context, userA, userB string, limit int) ([]string, error) {
	db := r.db.WithContext(ctx)
	ofB := db.Model(&model.Follow{}).Select("followee_id").
		Where("follower_id = ? AND status = ?", userB, model.FollowAccepted)
	var ids []string
	err := db.Model(&model.Follow{}).
		Where("follower_id = ? AND status = ?", userA, model.FollowAccepted).
		Where("followee_id IN (?)", ofB).
		Order("followee_id").
		Limit(limit).
		Pluck("followee_id", &ids).Error
	return ids, err
}

// Suggest 二度关注：我关注的人关注了谁
func (r *followRepository) Suggest(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	db := r.db.WithContext(ctx)
	mine := db.Model(&model.Follow{}).Select("followee_id").
		Where("follower_id = ? AND status = ?", userID, model.FollowAccepted)
	existing := db.Model(&model.Follow{}).Select("followee_id").
		Where("follower_id = ?", userID)

	var out []Suggestion
	err := db.Table("follows AS f").
		Select("f.followee_id AS user_id, COUNT(*) AS via, u.followers_count AS followers_count").
		Joins("JOIN users u ON u.id = f.followee_id").
		Where("f.status = ?", model.FollowAccepted).
		Where("f.follower_id IN (?)", mine).
		Where("f.followee_id <> ?", userID).
		Where("f.followee_id NOT IN (?)", existing).
		Where("u.is_active = ? AND u.is_suspended = ?", true, false).
		Group("f.followee_id, u.followers_count").
		Order("via DESC").Order("followers_count DESC").Order("user_id").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
