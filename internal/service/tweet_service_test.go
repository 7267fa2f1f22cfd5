package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

func TestCreateTweet(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	rec := &recorder{}
	svc := NewTweetService(db, clk, rec)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	_, err := svc.Create(ctx, a.ID, CreateTweetInput{Content: strings.Repeat("é", model.MaxTweetLength+1)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = svc.Create(ctx, a.ID, CreateTweetInput{Content: "x", Visibility: "secret"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	tw, err := svc.Create(ctx, a.ID, CreateTweetInput{Content: "Hi @Bob @alice @ghost #Go #go #cloud"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "cloud"}, []string(tw.Hashtags))
	require.Len(t, tw.Mentions, 2)
	assert.Equal(t, b.ID, tw.Mentions[0].UserID)
	assert.EqualValues(t, 1, reloadUser(t, db, a.ID).Stats.TweetsCount)
	assert.EqualValues(t, 2, countRows(t, db, &model.TweetHashtag{}, "tweet_id = ?", tw.ID))

	// 自己提及自己不通知
	mentions := rec.of(model.NotifyMention)
	require.Len(t, mentions, 1)
	assert.Equal(t, b.ID, mentions[0].RecipientID)

	var goTag model.Hashtag
	require.NoError(t, db.First(&goTag, "hashtag = ?", "go").Error)
	assert.EqualValues(t, 1, goTag.TotalUsage)
	assert.EqualValues(t, 1, goTag.UniqueUsers)
	assert.EqualValues(t, 1, goTag.Today)
	assert.EqualValues(t, 1, countRows(t, db, &model.HashtagRelation{}, "hashtag = ? AND related = ?", "go", "cloud"))
}

func TestEditTweet(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	rec := &recorder{}
	svc := NewTweetService(db, clk, rec)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	tw := post(t, svc, clk, a.ID, "first draft #go")

	content := "second draft #go #rust @bob"
	_, err := svc.Edit(ctx, b.ID, tw.ID, TweetPatch{Content: &content})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	got, err := svc.Edit(ctx, a.ID, tw.ID, TweetPatch{Content: &content})
	require.NoError(t, err)
	assert.True(t, got.IsEdited)
	require.Len(t, got.EditHistory, 1)
	assert.Equal(t, "first draft #go", got.EditHistory[0].Content)

	stored := reloadTweet(t, db, tw.ID)
	assert.Equal(t, content, stored.Content)
	assert.Equal(t, []string{"go", "rust"}, []string(stored.Hashtags))
	assert.EqualValues(t, 2, countRows(t, db, &model.TweetHashtag{}, "tweet_id = ?", tw.ID))
	assert.Len(t, rec.of(model.NotifyMention), 1)

	var goTag model.Hashtag
	require.NoError(t, db.First(&goTag, "hashtag = ?", "go").Error)
	assert.EqualValues(t, 1, goTag.TotalUsage, "unchanged tags are not recounted")
}

func TestDeleteTweet(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	svc := NewTweetService(db, clk, nil)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	tw := post(t, svc, clk, a.ID, "bye")

	assert.ErrorIs(t, svc.Delete(ctx, b.ID, tw.ID), apperr.ErrPermissionDenied)
	require.NoError(t, svc.Delete(ctx, a.ID, tw.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID, tw.ID), apperr.ErrNotFound)
	assert.EqualValues(t, 0, reloadUser(t, db, a.ID).Stats.TweetsCount)

	page, err := svc.UserTweets(ctx, a.ID, "", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestLikedTweets(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	svc := NewTweetService(db, clk, nil)
	engage := NewEngagementService(db, clk, nil)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	t1 := post(t, svc, clk, a.ID, "one")
	t2 := post(t, svc, clk, a.ID, "two")

	_, err := engage.ToggleLike(ctx, b.ID, t2.ID)
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = engage.ToggleLike(ctx, b.ID, t1.ID)
	require.NoError(t, err)

	page, err := svc.LikedTweets(ctx, b.ID, b.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, t1.ID, page.Items[0].ID, "most recent like first")
	assert.True(t, page.Items[0].IsLiked)
}
