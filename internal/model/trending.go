package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LocationGlobal = "global"
	// TrendingTTL 快照保留时长
	TrendingTTL = 7 * 24 * time.Hour
	// MaxTrendingRank getTrending 只返回这个名次以内的话题
	MaxTrendingRank = 50
)

// SampleTweet 快照中的示例推文
type SampleTweet struct {
	TweetID       string    `json:"tweet_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Content       string    `json:"content"`
	LikesCount    int64     `json:"likes_count"`
	RetweetsCount int64     `json:"retweets_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrendingTopic 按 (hashtag, location) 的趋势快照，可完全由推文历史重算
type TrendingTopic struct {
	ID                string                           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Hashtag           string                           `json:"hashtag" gorm:"type:varchar(100);not null;index:idx_trend_pair,unique"`
	Location          string                           `json:"location" gorm:"type:varchar(32);not null;index:idx_trend_pair,unique;index:idx_trend_loc_rank"`
	Category          string                           `json:"category" gorm:"type:varchar(32);not null;default:general;index"`
	TweetsCount       int64                            `json:"tweets_count"`
	UsersCount        int64                            `json:"users_count"`
	Last1Hour         int64                            `json:"last_1_hour"`
	Last6Hours        int64                            `json:"last_6_hours"`
	Last24Hours       int64                            `json:"last_24_hours"`
	Last7Days         int64                            `json:"last_7_days"`
	TrendingScore     int64                            `json:"trending_score" gorm:"index"`
	Rank              int                              `json:"rank" gorm:"index:idx_trend_loc_rank"`
	PeakTweetsPerHour int64                            `json:"peak_tweets_per_hour"`
	PeakTime          *time.Time                       `json:"peak_time"`
	SampleTweets      datatypes.JSONSlice[SampleTweet] `json:"sample_tweets"`
	IsBlocked         bool                             `json:"-" gorm:"not null;default:false"`
	IsPromoted        bool                             `json:"is_promoted" gorm:"not null;default:false"`
	FirstSeen         time.Time                        `json:"first_seen"`
	LastUpdated       time.Time                        `json:"last_updated" gorm:"index"`
}

func (TrendingTopic) TableName() string { return "trending_topics" }

// 趋势分权重：越近的用量权重越高
const (
	WeightLastHour = 10
	WeightLastDay  = 5
	WeightLastWeek = 1
	WeightAuthor   = 2
)

// TrendingScore 固定公式，不依赖任何外部状态
func TrendingScore(last1h, last24h, last7d, authors int64) int64 {
	return WeightLastHour*last1h + WeightLastDay*last24h + WeightLastWeek*last7d + WeightAuthor*authors
}
