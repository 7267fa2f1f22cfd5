package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/model"
)

type ReplyRepository interface {
	Create(ctx context.Context, r *model.Reply) error
	CountByParent(ctx context.Context, parentTweetID string) (int64, error)
	ListByThread(ctx context.Context, threadID string) ([]*model.Reply, error)
}

type replyRepository struct {
	db *gorm.DB
}

func NewReplyRepository(db *gorm.DB) ReplyRepository { return &replyRepository{db: db} }

func (r *replyRepository) Create(ctx context.Context, rp *model.Reply) error {
	return r.db.WithContext(ctx).Create(rp).Error
}

func (r *replyRepository) CountByParent(ctx context.Context, parentTweetID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Reply{}).Where("parent_tweet_id = ?", parentTweetID).Count(&n).Error
	return n, err
}

func (r *replyRepository) ListByThread(ctx context.Context, threadID string) ([]*model.Reply, error) {
	var out []*model.Reply
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("level ASC").Order("created_at ASC").
		Find(&out).Error
	return out, err
}
