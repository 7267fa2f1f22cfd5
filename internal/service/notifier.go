package service

import (
	"context"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// NotifyEvent 一次待投递的通知
type NotifyEvent struct {
	RecipientID    string
	FromUserID     string
	Type           model.NotificationType
	TweetID        string
	MessageID      string
	ConversationID string
}

// Notifier 尽力投递，调用方不感知失败
type Notifier interface {
	Notify(ctx context.Context, ev NotifyEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, NotifyEvent) {}

// FollowingInvalidator 关注关系变化时清理缓存
type FollowingInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
