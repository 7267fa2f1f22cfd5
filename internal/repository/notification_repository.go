package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// NotificationFilter 列表过滤条件；Since 之前的记录视为已过期
type NotificationFilter struct {
	UserID     string
	Since      time.Time
	UnreadOnly bool
	Type       model.NotificationType
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id string) (*model.Notification, error)
	List(ctx context.Context, f NotificationFilter, offset, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID string, since time.Time) (int64, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) Get(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, f NotificationFilter, offset, limit int) ([]*model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND created_at >= ?", f.UserID, f.Since)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var out []*model.Notification
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ? AND created_at >= ?", userID, false, since).
		Count(&n).Error
	return n, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": at}).Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Notification{}).Error
}

func (r *notificationRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}
