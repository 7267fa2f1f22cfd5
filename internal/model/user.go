package model

import "time"

// UserStats 用户冗余计数
type UserStats struct {
	TweetsCount    int64 `json:"tweets_count" gorm:"not null;default:0"`
	FollowersCount int64 `json:"followers_count" gorm:"not null;default:0;index"`
	FollowingCount int64 `json:"following_count" gorm:"not null;default:0"`
	LikesCount     int64 `json:"likes_count" gorm:"not null;default:0"`
}

// NotificationPrefs 按通知类型的开关
type NotificationPrefs struct {
	Likes    bool `json:"likes"`
	Retweets bool `json:"retweets"`
	Replies  bool `json:"replies"`
	Follows  bool `json:"follows"`
	Mentions bool `json:"mentions"`
	Messages bool `json:"messages"`
}

// AllNotificationPrefs 新用户默认全部开启
func AllNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Likes: true, Retweets: true, Replies: true, Follows: true, Mentions: true, Messages: true}
}

// User 用户，停用只翻转 IsActive，不物理删除
type User struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username    string            `json:"username" gorm:"type:varchar(20);uniqueIndex;not null"`
	Email       string            `json:"-" gorm:"type:varchar(255);uniqueIndex;not null"`
	Password    string            `json:"-" gorm:"type:varchar(100);not null"`
	DisplayName string            `json:"display_name" gorm:"type:varchar(50)"`
	Bio         string            `json:"bio" gorm:"type:varchar(160)"`
	Location    string            `json:"location" gorm:"type:varchar(50)"`
	Website     string            `json:"website" gorm:"type:varchar(100)"`
	AvatarURL   string            `json:"avatar_url" gorm:"type:varchar(255)"`
	Verified    bool              `json:"verified"`
	IsPrivate   bool              `json:"is_private"`
	IsActive    bool              `json:"is_active" gorm:"index"`
	IsSuspended bool              `json:"is_suspended"`
	Stats       UserStats         `json:"stats" gorm:"embedded"`
	Notify      NotificationPrefs `json:"-" gorm:"embedded;embeddedPrefix:notify_"`
	LastActive  time.Time         `json:"last_active"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Visible 账号处于可见状态
func (u *User) Visible() bool { return u.IsActive && !u.IsSuspended }

// UserSummary 列表/通知中使用的精简资料
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Verified    bool   `json:"verified"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, Verified: u.Verified}
}
