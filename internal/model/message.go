package model

import "time"

// Conversation 两人会话，UserAID < UserBID 保证同一对用户只有一条
type Conversation struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserAID       string     `json:"user_a_id" gorm:"type:varchar(36);not null;index:idx_conv_pair,unique"`
	UserBID       string     `json:"user_b_id" gorm:"type:varchar(36);not null;index:idx_conv_pair,unique;index"`
	UnreadA       int64      `json:"-" gorm:"not null;default:0"`
	UnreadB       int64      `json:"-" gorm:"not null;default:0"`
	LastMessageID *string    `json:"last_message_id" gorm:"type:varchar(36)"`
	LastSenderID  string     `json:"last_sender_id" gorm:"type:varchar(36)"`
	LastPreview   string     `json:"last_preview" gorm:"type:varchar(100)"`
	LastMessageAt *time.Time `json:"last_message_at" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Has 是否为会话参与者
func (c *Conversation) Has(userID string) bool { return c.UserAID == userID || c.UserBID == userID }

// UnreadFor 某参与者的未读数
func (c *Conversation) UnreadFor(userID string) int64 {
	if c.UserAID == userID {
		return c.UnreadA
	}
	return c.UnreadB
}

// Message 私信。双方各自删除后才整体标记删除
type Message struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID     string     `json:"conversation_id" gorm:"type:varchar(36);not null;index:idx_msg_conv_created"`
	SenderID           string     `json:"sender_id" gorm:"type:varchar(36);not null;index"`
	RecipientID        string     `json:"recipient_id" gorm:"type:varchar(36);not null;index"`
	Content            string     `json:"content" gorm:"type:text;not null"`
	IsRead             bool       `json:"is_read" gorm:"not null;default:false"`
	ReadAt             *time.Time `json:"read_at"`
	DeletedBySender    bool       `json:"-" gorm:"not null;default:false"`
	DeletedByRecipient bool       `json:"-" gorm:"not null;default:false"`
	IsDeleted          bool       `json:"-" gorm:"not null;default:false;index"`
	CreatedAt          time.Time  `json:"created_at" gorm:"index:idx_msg_conv_created"`
}

func (Message) TableName() string { return "messages" }

// HiddenFor 该消息对某用户是否已不可见
func (m *Message) HiddenFor(userID string) bool {
	if m.IsDeleted {
		return true
	}
	if userID == m.SenderID {
		return m.DeletedBySender
	}
	return m.DeletedByRecipient
}
