package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrendingScore(t *testing.T) {
	assert.Equal(t, int64(0), TrendingScore(0, 0, 0, 0))
	// 10*2 + 5*6 + 1*9 + 2*4
	assert.Equal(t, int64(67), TrendingScore(2, 6, 9, 4))
	assert.Greater(t, TrendingScore(1, 1, 1, 1), TrendingScore(0, 1, 1, 1))
}

func TestNotificationPrefsEnabled(t *testing.T) {
	p := AllNotificationPrefs()
	p.Retweets = false
	assert.True(t, p.Enabled(NotifyLike))
	assert.False(t, p.Enabled(NotifyRetweet))
	assert.False(t, p.Enabled(NotifyQuote))
	assert.False(t, p.Enabled(NotificationType("unknown")))
}

func TestTweetVariant(t *testing.T) {
	tw := &Tweet{Kind: KindReply, Reply: ReplyRef{ParentTweetID: "p", ThreadID: "root", Level: 2}}
	v, ok := tw.Variant().(ReplyVariant)
	assert.True(t, ok)
	assert.Equal(t, "root", v.To.ThreadID)

	tw = &Tweet{Kind: KindQuote, Quoted: QuotedTweet{TweetID: "o"}}
	q, ok := tw.Variant().(Quote)
	assert.True(t, ok)
	assert.Equal(t, "o", q.Of.TweetID)

	assert.Equal(t, KindTweet, (&Tweet{}).Variant().Kind())
}
