package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/internal/textutil"
)

const (
	MaxMessageLength = 1000
	previewLength    = 100
)

type ConversationView struct {
	*model.Conversation
	Other       model.UserSummary `json:"other_user"`
	UnreadCount int64             `json:"unread_count"`
}

type ConversationPage struct {
	Items []ConversationView `json:"items"`
	PageInfo
}

type MessagePage struct {
	Items []*model.Message `json:"items"`
	PageInfo
}

// MessageService 私信：会话、发送、成对删除
type MessageService interface {
	Send(ctx context.Context, fromID, toID, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, userID, messageID string) error
	ListConversations(ctx context.Context, userID string, page, pageSize int) (*ConversationPage, error)
	ListMessages(ctx context.Context, userID, conversationID string, page, pageSize int) (*MessagePage, error)
	MarkRead(ctx context.Context, userID, conversationID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type messageService struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier Notifier
}

func NewMessageService(db *gorm.DB, clk clock.Clock, notifier Notifier) MessageService {
	return &messageService{db: db, clock: clk, notifier: orNop(notifier)}
}

func (s *messageService) Send(ctx context.Context, fromID, toID, content string) (*model.Message, error) {
	if fromID == toID {
		return nil, apperr.InvalidState("you cannot message yourself")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperr.Invalid("message is too long")
	}

	var msg *model.Message
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := repository.NewUserRepository(tx)
			if _, err := users.Get(ctx, fromID); err != nil {
				return apperr.FromStore(err, "user not found")
			}
			to, err := users.Get(ctx, toID)
			if err != nil {
				return apperr.FromStore(err, "recipient not found")
			}
			if !to.Visible() {
				return apperr.InvalidState("recipient is not available")
			}

			repo := repository.NewMessageRepository(tx)
			conv, err := s.conversation(ctx, repo, fromID, toID)
			if err != nil {
				return err
			}
			m := &model.Message{
				ID:             uuid.New().String(),
				ConversationID: conv.ID,
				SenderID:       fromID,
				RecipientID:    toID,
				Content:        content,
				CreatedAt:      s.clock.Now(),
			}
			if err := repo.CreateMessage(ctx, m); err != nil {
				return err
			}
			if err := repo.TouchConversation(ctx, conv, m, textutil.Preview(content, previewLength)); err != nil {
				return err
			}
			msg = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, NotifyEvent{
		RecipientID:    toID,
		FromUserID:     fromID,
		Type:           model.NotifyMessage,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	return msg, nil
}

// conversation 取或建两人会话，并发创建由唯一键兜底
func (s *messageService) conversation(ctx context.Context, repo repository.MessageRepository, a, b string) (*model.Conversation, error) {
	conv, err := repo.FindConversation(ctx, a, b)
	if err != nil || conv != nil {
		return conv, err
	}
	if a > b {
		a, b = b, a
	}
	now := s.clock.Now()
	_, err = repo.CreateConversation(ctx, &model.Conversation{
		ID:        uuid.New().String(),
		UserAID:   a,
		UserBID:   b,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	conv, err = repo.FindConversation(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.Conflict("conversation could not be created")
	}
	return conv, nil
}

// DeleteMessage 只对删除者隐藏；双方都删除后才整体删除
func (s *messageService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	return apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := repository.NewMessageRepository(tx)
			m, err := repo.GetMessage(ctx, messageID)
			if err != nil {
				return apperr.FromStore(err, "message not found")
			}
			if m.SenderID != userID && m.RecipientID != userID {
				return apperr.PermissionDenied("you can only delete messages in your conversations")
			}
			if m.HiddenFor(userID) {
				return apperr.NotFound("message not found")
			}
			return repo.MarkDeletedBy(ctx, m, userID)
		})
	})
}

func (s *messageService) ListConversations(ctx context.Context, userID string, page, pageSize int) (*ConversationPage, error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	convs, err := repository.NewMessageRepository(s.db).ListConversations(ctx, userID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	others := make([]string, len(convs))
	for i, c := range convs {
		others[i] = c.UserAID
		if c.UserAID == userID {
			others[i] = c.UserBID
		}
	}
	byID, err := repository.NewUserRepository(s.db).GetMany(ctx, others)
	if err != nil {
		return nil, err
	}
	out := &ConversationPage{Items: make([]ConversationView, 0, len(convs)), PageInfo: pageInfo(page, pageSize, len(convs))}
	for i, c := range convs {
		v := ConversationView{Conversation: c, UnreadCount: c.UnreadFor(userID)}
		if u, ok := byID[others[i]]; ok {
			v.Other = u.Summary()
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

func (s *messageService) participant(ctx context.Context, repo repository.MessageRepository, userID, conversationID string) (*model.Conversation, error) {
	c, err := repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.FromStore(err, "conversation not found")
	}
	if !c.Has(userID) {
		return nil, apperr.PermissionDenied("you are not part of this conversation")
	}
	return c, nil
}

func (s *messageService) ListMessages(ctx context.Context, userID, conversationID string, page, pageSize int) (*MessagePage, error) {
	repo := repository.NewMessageRepository(s.db)
	if _, err := s.participant(ctx, repo, userID, conversationID); err != nil {
		return nil, err
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	items, err := repo.ListMessages(ctx, conversationID, userID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Items: items, PageInfo: pageInfo(page, pageSize, len(items))}, nil
}

func (s *messageService) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	var n int64
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := repository.NewMessageRepository(tx)
			c, err := s.participant(ctx, repo, userID, conversationID)
			if err != nil {
				return err
			}
			n, err = repo.MarkConversationRead(ctx, c, userID, s.clock.Now())
			return err
		})
	})
	return n, err
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repository.NewMessageRepository(s.db).UnreadTotal(ctx, userID)
}
