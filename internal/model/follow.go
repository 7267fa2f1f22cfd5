package model

import (
	"time"
)

// FollowStatus 关注边状态
type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
)

// Follow 关注关系（A 关注 B），私密账号先进入 pending
type Follow struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FollowerID string `json:"follower_id" gorm:"type:varchar(36);index:idx_follow_follower;index:idx_follow_pair,unique;not null"`
	FolloweeID string `json:"followee_id" gorm:"type:varchar(36);not null;index:idx_follow_pair,unique;index:idx_follow_followee"`
	// 复合唯一键，避免重复关注
	// idx_follow_pair = (follower_id, followee_id)
	Status    FollowStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Follow) TableName() string { return "follows" }

// Counted 只有 accepted 的边计入双方计数
func (f *Follow) Counted() bool { return f.Status == FollowAccepted }
