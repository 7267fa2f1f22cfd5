package model

// All 需要迁移的全部模型
func All() []any {
	return []any{
		&User{},
		&Follow{},
		&Tweet{},
		&TweetHashtag{},
		&Like{},
		&Retweet{},
		&Bookmark{},
		&Reply{},
		&Hashtag{},
		&HashtagUser{},
		&HashtagRelation{},
		&TrendingTopic{},
		&Notification{},
		&Conversation{},
		&Message{},
	}
}
