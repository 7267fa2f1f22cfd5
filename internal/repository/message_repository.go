package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/socialgraph/internal/model"
)

type MessageRepository interface {
	FindConversation(ctx context.Context, userA, userB string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) (bool, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	TouchConversation(ctx context.Context, c *model.Conversation, m *model.Message, preview string) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	MarkDeletedBy(ctx context.Context, m *model.Message, userID string) error
	ListMessages(ctx context.Context, conversationID, viewerID string, offset, limit int) ([]*model.Message, error)
	MarkConversationRead(ctx context.Context, c *model.Conversation, userID string, at time.Time) (int64, error)
	UnreadTotal(ctx context.Context, userID string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

// FindConversation 参数顺序无关，不存在时返回 nil, nil
func (r *messageRepository) FindConversation(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA > userB {
		userA, userB = userB, userA
	}
	var c model.Conversation
	err := r.db.WithContext(ctx).Where("user_a_id = ? AND user_b_id = ?", userA, userB).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *messageRepository) CreateConversation(ctx context.Context, c *model.Conversation) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	return res.RowsAffected == 1, res.Error
}

func (r *messageRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *messageRepository) ListConversations(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, error) {
	var out []*model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *messageRepository) CreateMessage(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// TouchConversation 刷新最后一条消息并给接收方未读 +1
func (r *messageRepository) TouchConversation(ctx context.Context, c *model.Conversation, m *model.Message, preview string) error {
	unread := "unread_b"
	if m.RecipientID == c.UserAID {
		unread = "unread_a"
	}
	return r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", c.ID).
		Updates(map[string]any{
			"last_message_id": m.ID,
			"last_sender_id":  m.SenderID,
			"last_preview":    preview,
			"last_message_at": m.CreatedAt,
			unread:            gorm.Expr(unread + " + 1"),
		}).Error
}

func (r *messageRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkDeletedBy 记录一方删除；双方都删除后整体标记 is_deleted
func (r *messageRepository) MarkDeletedBy(ctx context.Context, m *model.Message, userID string) error {
	col := "deleted_by_recipient"
	if userID == m.SenderID {
		col = "deleted_by_sender"
	}
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Message{}).Where("id = ?", m.ID).UpdateColumn(col, true).Error; err != nil {
		return err
	}
	return db.Model(&model.Message{}).
		Where("id = ? AND deleted_by_sender = ? AND deleted_by_recipient = ?", m.ID, true, true).
		UpdateColumn("is_deleted", true).Error
}

// ListMessages 新消息在前，排除查看者已删除的
func (r *messageRepository) ListMessages(ctx context.Context, conversationID, viewerID string, offset, limit int) ([]*model.Message, error) {
	db := r.db.WithContext(ctx)
	var out []*model.Message
	err := db.
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Where(db.Where("sender_id = ? AND deleted_by_sender = ?", viewerID, false).
			Or("recipient_id = ? AND deleted_by_recipient = ?", viewerID, false)).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, c *model.Conversation, userID string, at time.Time) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", c.ID, userID, false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, res.Error
	}
	unread := "unread_b"
	if userID == c.UserAID {
		unread = "unread_a"
	}
	if err := db.Model(&model.Conversation{}).Where("id = ?", c.ID).UpdateColumn(unread, 0).Error; err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	var total struct{ N int64 }
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Select("COALESCE(SUM(CASE WHEN user_a_id = ? THEN unread_a ELSE unread_b END), 0) AS n", userID).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Scan(&total).Error
	return total.N, err
}
