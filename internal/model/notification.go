package model

import "time"

// NotificationType 通知类型
type NotificationType string

const (
	NotifyLike    NotificationType = "like"
	NotifyRetweet NotificationType = "retweet"
	NotifyQuote   NotificationType = "quote"
	NotifyReply   NotificationType = "reply"
	NotifyFollow  NotificationType = "follow"
	NotifyMention NotificationType = "mention"
	NotifyMessage NotificationType = "message"
)

// NotificationTTL 通知保留时长
const NotificationTTL = 30 * 24 * time.Hour

// Enabled 按类型读取用户偏好，quote 与 retweet 共用开关
func (p NotificationPrefs) Enabled(t NotificationType) bool {
	switch t {
	case NotifyLike:
		return p.Likes
	case NotifyRetweet, NotifyQuote:
		return p.Retweets
	case NotifyReply:
		return p.Replies
	case NotifyFollow:
		return p.Follows
	case NotifyMention:
		return p.Mentions
	case NotifyMessage:
		return p.Messages
	}
	return false
}

// Notification 通知，发送方资料在发送时快照
type Notification struct {
	ID                    string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID                string           `json:"user_id" gorm:"type:varchar(36);not null;index:idx_notif_user_created"`
	Type                  NotificationType `json:"type" gorm:"type:varchar(16);not null;index"`
	Title                 string           `json:"title" gorm:"type:varchar(100)"`
	Message               string           `json:"message" gorm:"type:varchar(200)"`
	FromUserID            string           `json:"from_user_id" gorm:"type:varchar(36);not null;index"`
	FromUsername          string           `json:"from_username" gorm:"type:varchar(20)"`
	FromDisplayName       string           `json:"from_display_name" gorm:"type:varchar(50)"`
	FromAvatar            string           `json:"from_avatar" gorm:"type:varchar(255)"`
	RelatedTweetID        *string          `json:"related_tweet_id,omitempty" gorm:"type:varchar(36)"`
	RelatedMessageID      *string          `json:"related_message_id,omitempty" gorm:"type:varchar(36)"`
	RelatedConversationID *string          `json:"related_conversation_id,omitempty" gorm:"type:varchar(36)"`
	IsRead                bool             `json:"is_read" gorm:"not null;default:false;index"`
	ReadAt                *time.Time       `json:"read_at"`
	CreatedAt             time.Time        `json:"created_at" gorm:"index;index:idx_notif_user_created"`
}

func (Notification) TableName() string { return "notifications" }
