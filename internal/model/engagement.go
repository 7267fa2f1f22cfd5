package model

import "time"

// Like 点赞边，(user_id, tweet_id) 唯一
type Like struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string    `json:"user_id" gorm:"type:varchar(36);not null;index:idx_like_pair,unique;index:idx_like_user_created"`
	TweetID       string    `json:"tweet_id" gorm:"type:varchar(36);not null;index:idx_like_pair,unique;index:idx_like_tweet_created"`
	TweetAuthorID string    `json:"tweet_author_id" gorm:"type:varchar(36);not null;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_like_user_created;index:idx_like_tweet_created"`
}

func (Like) TableName() string { return "likes" }

// RetweetKind 转推类型
type RetweetKind string

const (
	RetweetPlain RetweetKind = "retweet"
	RetweetQuote RetweetKind = "quote"
)

// Retweet 转推/引用边，(user_id, tweet_id, kind) 唯一
type Retweet struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string      `json:"user_id" gorm:"type:varchar(36);not null;index:idx_retweet_pair,unique"`
	TweetID        string      `json:"tweet_id" gorm:"type:varchar(36);not null;index:idx_retweet_pair,unique;index"`
	Kind           RetweetKind `json:"kind" gorm:"type:varchar(16);not null;index:idx_retweet_pair,unique"`
	OriginalUserID string      `json:"original_user_id" gorm:"type:varchar(36);not null;index"`
	Comment        string      `json:"comment" gorm:"type:varchar(280)"`
	QuoteTweetID   *string     `json:"quote_tweet_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index"`
}

func (Retweet) TableName() string { return "retweets" }

// Bookmark 收藏边
type Bookmark struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index:idx_bookmark_pair,unique"`
	TweetID   string    `json:"tweet_id" gorm:"type:varchar(36);not null;index:idx_bookmark_pair,unique"`
	CreatedAt time.Time `json:"created_at"`
}

func (Bookmark) TableName() string { return "bookmarks" }

// Reply 回复线程归属，tweet_id 唯一
type Reply struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	TweetID       string    `json:"tweet_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	ParentTweetID string    `json:"parent_tweet_id" gorm:"type:varchar(36);not null;index:idx_reply_parent_created"`
	ParentUserID  string    `json:"parent_user_id" gorm:"type:varchar(36);not null"`
	ThreadID      string    `json:"thread_id" gorm:"type:varchar(36);not null;index:idx_reply_thread"`
	Level         int       `json:"level" gorm:"not null;index:idx_reply_thread"`
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_reply_parent_created;index:idx_reply_thread"`
}

func (Reply) TableName() string { return "replies" }
