package model

import (
	"time"

	"gorm.io/datatypes"
)

// TweetKind 推文变体
type TweetKind string

const (
	KindTweet TweetKind = "tweet"
	KindQuote TweetKind = "quote"
	KindReply TweetKind = "reply"
)

const MaxTweetLength = 280

// TweetStats 冗余计数，真实来源是各边表
type TweetStats struct {
	LikesCount     int64 `json:"likes" gorm:"not null;default:0"`
	RetweetsCount  int64 `json:"retweets" gorm:"not null;default:0"`
	RepliesCount   int64 `json:"replies" gorm:"not null;default:0"`
	QuotesCount    int64 `json:"quotes" gorm:"not null;default:0"`
	ViewsCount     int64 `json:"views" gorm:"not null;default:0"`
	BookmarksCount int64 `json:"bookmarks" gorm:"not null;default:0"`
}

type MentionRef struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type MediaRef struct {
	Type string `json:"type"` // image | video | gif
	URL  string `json:"url"`
	Alt  string `json:"alt,omitempty"`
}

type EditRecord struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

// QuotedTweet 引用时刻的原推快照，不随原推变化
type QuotedTweet struct {
	TweetID  string     `json:"tweet_id" gorm:"type:varchar(36)"`
	UserID   string     `json:"user_id" gorm:"type:varchar(36)"`
	Username string     `json:"username" gorm:"type:varchar(20)"`
	Content  string     `json:"content" gorm:"type:text"`
	PostedAt *time.Time `json:"created_at"`
}

// ReplyRef 回复挂载信息；根推文 Level 为 0
type ReplyRef struct {
	ParentTweetID  string `json:"parent_tweet_id" gorm:"type:varchar(36);index"`
	ParentUserID   string `json:"parent_user_id" gorm:"type:varchar(36)"`
	ParentUsername string `json:"parent_username" gorm:"type:varchar(20)"`
	ThreadID       string `json:"thread_id" gorm:"type:varchar(36);index"`
	Level          int    `json:"level" gorm:"not null;default:0"`
}

// Tweet 推文。Kind 决定 Quoted/Reply 中哪一组字段有效，读取时用 Variant()
type Tweet struct {
	ID           string                          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID     string                          `json:"author_id" gorm:"type:varchar(36);index:idx_tweet_author_created;not null"`
	Content      string                          `json:"content" gorm:"type:text;not null"`
	Kind         TweetKind                       `json:"kind" gorm:"type:varchar(16);not null;default:tweet"`
	Visibility   string                          `json:"visibility" gorm:"type:varchar(16);not null;default:public"`
	AllowReplies string                          `json:"allow_replies" gorm:"type:varchar(16);not null;default:everyone"`
	Hashtags     datatypes.JSONSlice[string]     `json:"hashtags"`
	Mentions     datatypes.JSONSlice[MentionRef] `json:"mentions"`
	Media        datatypes.JSONSlice[MediaRef]   `json:"media"`
	LocationCode string                          `json:"location_code" gorm:"type:varchar(16);index"`
	Stats        TweetStats                      `json:"stats" gorm:"embedded"`
	Quoted       QuotedTweet                     `json:"-" gorm:"embedded;embeddedPrefix:quoted_"`
	Reply        ReplyRef                        `json:"-" gorm:"embedded;embeddedPrefix:reply_"`
	IsEdited     bool                            `json:"is_edited"`
	EditHistory  datatypes.JSONSlice[EditRecord] `json:"edit_history"`
	IsDeleted    bool                            `json:"-" gorm:"index;not null;default:false"`
	CreatedAt    time.Time                       `json:"created_at" gorm:"index;index:idx_tweet_author_created"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

func (Tweet) TableName() string { return "tweets" }

// Variant 推文的具体形态
type Variant interface {
	Kind() TweetKind
}

type Original struct{}

type Quote struct {
	Of QuotedTweet `json:"quoted_tweet"`
}

type ReplyVariant struct {
	To ReplyRef `json:"reply_to"`
}

func (Original) Kind() TweetKind     { return KindTweet }
func (Quote) Kind() TweetKind        { return KindQuote }
func (ReplyVariant) Kind() TweetKind { return KindReply }

func (t *Tweet) Variant() Variant {
	switch t.Kind {
	case KindQuote:
		return Quote{Of: t.Quoted}
	case KindReply:
		return ReplyVariant{To: t.Reply}
	default:
		return Original{}
	}
}

// TweetHashtag 推文-话题展开表，趋势计算只扫这张表
type TweetHashtag struct {
	TweetID      string    `gorm:"primaryKey;type:varchar(36)"`
	Hashtag      string    `gorm:"primaryKey;type:varchar(100);index:idx_th_tag_created"`
	AuthorID     string    `gorm:"type:varchar(36);not null"`
	LocationCode string    `gorm:"type:varchar(16);index"`
	CreatedAt    time.Time `gorm:"index;index:idx_th_tag_created"`
}

func (TweetHashtag) TableName() string { return "tweet_hashtags" }
