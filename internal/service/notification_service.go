package service

import (
	"context"

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

var notificationTexts = map[model.NotificationType][2]string{
	model.NotifyLike:    {"New like", "liked your tweet"},
	model.NotifyRetweet: {"New retweet", "retweeted your tweet"},
	model.NotifyQuote:   {"New quote", "quoted your tweet"},
	model.NotifyReply:   {"New reply", "replied to your tweet"},
	model.NotifyFollow:  {"New follower", "started following you"},
	model.NotifyMention: {"You were mentioned", "mentioned you in a tweet"},
	model.NotifyMessage: {"New message", "sent you a message"},
}

// NotificationQuery 列表参数
type NotificationQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
	Type       model.NotificationType
}

type NotificationPage struct {
	Items       []*model.Notification `json:"items"`
	UnreadCount int64                 `json:"unread_count"`
	PageInfo
}

// NotificationService 通知的同步写入与收件箱操作
type NotificationService interface {
	Notifier
	Send(ctx context.Context, ev NotifyEvent) (*model.Notification, error)
	List(ctx context.Context, userID string, q NotificationQuery) (*NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewNotificationService(db *gorm.DB, clk clock.Clock) NotificationService {
	return &notificationService{db: db, clock: clk}
}

// Notify 失败只记录日志
func (s *notificationService) Notify(ctx context.Context, ev NotifyEvent) {
	if _, err := s.Send(ctx, ev); err != nil {
		metrics.NotificationsSent.WithLabelValues(string(ev.Type), "error").Inc()
		logger.Warn("notification dispatch failed",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.RecipientID),
			zap.String("from", ev.FromUserID),
			zap.Error(err))
	}
}

// Send 接收方关闭了该类型时返回 nil, nil；发送方资料在此刻快照
func (s *notificationService) Send(ctx context.Context, ev NotifyEvent) (*model.Notification, error) {
	texts, ok := notificationTexts[ev.Type]
	if !ok {
		return nil, apperr.Invalid("unknown notification type")
	}
	if ev.RecipientID == "" || ev.RecipientID == ev.FromUserID {
		return nil, nil
	}
	users := repository.NewUserRepository(s.db)
	recipient, err := users.Get(ctx, ev.RecipientID)
	if err != nil {
		return nil, apperr.FromStore(err, "recipient not found")
	}
	if !recipient.Notify.Enabled(ev.Type) {
		metrics.NotificationsSent.WithLabelValues(string(ev.Type), "suppressed").Inc()
		return nil, nil
	}
	from, err := users.Get(ctx, ev.FromUserID)
	if err != nil {
		return nil, apperr.FromStore(err, "sender not found")
	}

	n := &model.Notification{
		ID:                    uuid.New().String(),
		UserID:                recipient.ID,
		Type:                  ev.Type,
		Title:                 texts[0],
		Message:               texts[1],
		FromUserID:            from.ID,
		FromUsername:          from.Username,
		FromDisplayName:       from.DisplayName,
		FromAvatar:            from.AvatarURL,
		RelatedTweetID:        optional(ev.TweetID),
		RelatedMessageID:      optional(ev.MessageID),
		RelatedConversationID: optional(ev.ConversationID),
		CreatedAt:             s.clock.Now(),
	}
	err = apperr.Retry(ctx, func() error {
		return repository.NewNotificationRepository(s.db).Create(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	metrics.NotificationsSent.WithLabelValues(string(ev.Type), "sent").Inc()
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userID string, q NotificationQuery) (*NotificationPage, error) {
	page, limit, offset := normalizePage(q.Page, q.Limit)
	if q.Type != "" {
		if _, ok := notificationTexts[q.Type]; !ok {
			return nil, apperr.Invalid("unknown notification type")
		}
	}
	repo := repository.NewNotificationRepository(s.db)
	cutoff := s.clock.Now().Add(-model.NotificationTTL)
	items, err := repo.List(ctx, repository.NotificationFilter{
		UserID:     userID,
		Since:      cutoff,
		UnreadOnly: q.UnreadOnly,
		Type:       q.Type,
	}, offset, limit)
	if err != nil {
		return nil, err
	}
	unread, err := repo.CountUnread(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, UnreadCount: unread, PageInfo: pageInfo(page, limit, len(items))}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repository.NewNotificationRepository(s.db).CountUnread(ctx, userID, s.clock.Now().Add(-model.NotificationTTL))
}

// owned 读取并校验归属
func (s *notificationService) owned(ctx context.Context, repo repository.NotificationRepository, userID, id string) (*model.Notification, error) {
	n, err := repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "notification not found")
	}
	if n.UserID != userID {
		return nil, apperr.PermissionDenied("you can only access your own notifications")
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	repo := repository.NewNotificationRepository(s.db)
	if _, err := s.owned(ctx, repo, userID, id); err != nil {
		return err
	}
	return repo.MarkRead(ctx, id, s.clock.Now())
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return repository.NewNotificationRepository(s.db).MarkAllRead(ctx, userID, s.clock.Now())
}

func (s *notificationService) Delete(ctx context.Context, userID, id string) error {
	repo := repository.NewNotificationRepository(s.db)
	if _, err := s.owned(ctx, repo, userID, id); err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

func (s *notificationService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return repository.NewNotificationRepository(s.db).DeleteAll(ctx, userID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
