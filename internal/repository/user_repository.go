package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// 冗余计数列
const (
	ColTweetsCount    = "tweets_count"
	ColFollowersCount = "followers_count"
	ColFollowingCount = "following_count"
	ColLikesCount     = "likes_count"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetMany(ctx context.Context, ids []string) (map[string]*model.User, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]*model.User, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	IncrStat(ctx context.Context, id, column string, delta int64) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) FindByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	var users []*model.User
	if len(usernames) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("username IN ? AND is_active = ?", usernames, true).
		Find(&users).Error
	return users, err
}

func (r *userRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrStat 原地加减计数，减法带下限保护，返回是否有行被更新
func (r *userRepository) IncrStat(ctx context.Context, id, column string, delta int64) (bool, error) {
	return incrColumn(r.db.WithContext(ctx).Model(&model.User{}), id, column, delta)
}

// incrColumn col = col + delta，delta < 0 时要求 col >= -delta
func incrColumn(q *gorm.DB, id, column string, delta int64) (bool, error) {
	q = q.Where("id = ?", id)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	res := q.UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	return res.RowsAffected == 1, res.Error
}
