package model

import "time"

var HashtagCategories = []string{"technology", "sports", "entertainment", "politics", "general", "news", "business"}

func ValidCategory(c string) bool {
	for _, v := range HashtagCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Hashtag 话题及其用量计数。TotalUsage 只增不减，窗口计数仅由定时任务清零
type Hashtag struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Tag         string     `json:"hashtag" gorm:"column:hashtag;type:varchar(100);uniqueIndex;not null"`
	TotalUsage  int64      `json:"total_usage" gorm:"not null;default:0;index"`
	UniqueUsers int64      `json:"unique_users" gorm:"not null;default:0"`
	PeakUsage   int64      `json:"peak_usage" gorm:"not null;default:0"`
	PeakDate    *time.Time `json:"peak_date"`
	Today       int64      `json:"today" gorm:"not null;default:0"`
	ThisWeek    int64      `json:"this_week" gorm:"not null;default:0"`
	ThisMonth   int64      `json:"this_month" gorm:"not null;default:0"`
	Category    string     `json:"category" gorm:"type:varchar(32);not null;default:general;index"`
	Description string     `json:"description" gorm:"type:varchar(200)"`
	IsBlocked   bool       `json:"is_blocked" gorm:"not null;default:false"`
	IsPromoted  bool       `json:"is_promoted" gorm:"not null;default:false"`
	FirstUsed   time.Time  `json:"first_used"`
	LastUsed    time.Time  `json:"last_used" gorm:"index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Hashtag) TableName() string { return "hashtags" }

// HashtagUser 记录使用过某话题的用户，用于 UniqueUsers
type HashtagUser struct {
	Hashtag   string `gorm:"primaryKey;type:varchar(100)"`
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

func (HashtagUser) TableName() string { return "hashtag_users" }

// HashtagRelation 话题共现频次
type HashtagRelation struct {
	Hashtag   string `json:"-" gorm:"primaryKey;type:varchar(100)"`
	Related   string `json:"hashtag" gorm:"primaryKey;type:varchar(100)"`
	Frequency int64  `json:"frequency" gorm:"not null;default:0"`
}

func (HashtagRelation) TableName() string { return "hashtag_relations" }

// HashtagWindow 可被定时清零的窗口
type HashtagWindow string

const (
	WindowToday HashtagWindow = "today"
	WindowWeek  HashtagWindow = "this_week"
	WindowMonth HashtagWindow = "this_month"
)
