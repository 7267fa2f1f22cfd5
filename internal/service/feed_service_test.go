package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

func timelineIDs(t *testing.T, feed FeedService, viewerID string) []string {
	t.Helper()
	page, err := feed.Timeline(context.Background(), viewerID, 1, 50)
	require.NoError(t, err)
	ids := make([]string, 0, len(page.Items))
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestTimeline_Membership(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	graph := NewRelationshipService(db, clk, nil, nil)
	engage := NewEngagementService(db, clk, nil)
	feed := NewFeedService(db, nil)

	viewer := seedUser(t, db, "viewer")
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	stranger := seedUser(t, db, "stranger")
	locked := seedUser(t, db, "locked", privateAccount)

	for _, u := range []string{a.ID, b.ID, locked.ID} {
		_, err := graph.ToggleFollow(ctx, viewer.ID, u)
		require.NoError(t, err)
	}

	t1 := post(t, tweets, clk, a.ID, "a1")
	t2 := post(t, tweets, clk, stranger.ID, "s1")
	t3 := post(t, tweets, clk, viewer.ID, "v1")
	t4 := post(t, tweets, clk, b.ID, "b1")
	t5 := post(t, tweets, clk, locked.ID, "pending only")
	t6 := post(t, tweets, clk, a.ID, "a2 deleted")
	require.NoError(t, tweets.Delete(ctx, a.ID, t6.ID))
	_, err := engage.ToggleLike(ctx, viewer.ID, t1.ID)
	require.NoError(t, err)

	page, err := feed.Timeline(ctx, viewer.ID, 1, 20)
	require.NoError(t, err)
	var ids []string
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{t4.ID, t3.ID, t1.ID}, ids)
	assert.NotContains(t, ids, t2.ID)
	assert.NotContains(t, ids, t5.ID)
	assert.False(t, page.HasMore)

	assert.True(t, page.Items[2].IsLiked)
	assert.False(t, page.Items[0].IsLiked)
	assert.Equal(t, "bob", page.Items[0].Author.Username)

	first, err := feed.Timeline(ctx, viewer.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	second, err := feed.Timeline(ctx, viewer.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, t1.ID, second.Items[0].ID)
}

func TestTimeline_HidesInvisibleAuthors(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	graph := NewRelationshipService(db, clk, nil, nil)
	users := NewUserService(db, clk, nil, graph)
	feed := NewFeedService(db, nil)

	viewer := seedUser(t, db, "viewer")
	banned := seedUser(t, db, "banned")
	gone := seedUser(t, db, "gone")
	for _, u := range []string{banned.ID, gone.ID} {
		_, err := graph.ToggleFollow(ctx, viewer.ID, u)
		require.NoError(t, err)
	}
	tb := post(t, tweets, clk, banned.ID, "before ban")
	tg := post(t, tweets, clk, gone.ID, "before leaving")
	assert.Equal(t, []string{tg.ID, tb.ID}, timelineIDs(t, feed, viewer.ID))

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", banned.ID).Update("is_suspended", true).Error)
	require.NoError(t, users.Deactivate(ctx, gone.ID))
	assert.Empty(t, timelineIDs(t, feed, viewer.ID))

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", gone.ID).Update("is_active", true).Error)
	assert.Equal(t, []string{tg.ID}, timelineIDs(t, feed, viewer.ID))
}

func TestTimeline_PendingRequestAddsNothing(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	graph := NewRelationshipService(db, clk, nil, nil)
	feed := NewFeedService(db, nil)

	viewer := seedUser(t, db, "viewer")
	locked := seedUser(t, db, "locked", privateAccount)
	res, err := graph.ToggleFollow(ctx, viewer.ID, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.FollowPending), res.Status)

	secret := post(t, tweets, clk, locked.ID, "followers only soon")
	assert.Empty(t, timelineIDs(t, feed, viewer.ID))

	var edge model.Follow
	require.NoError(t, db.Where("follower_id = ? AND followee_id = ?", viewer.ID, locked.ID).First(&edge).Error)
	_, err = graph.AcceptRequest(ctx, locked.ID, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{secret.ID}, timelineIDs(t, feed, viewer.ID))
}

func TestTweetDetail(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	engage := NewEngagementService(db, clk, nil)
	feed := NewFeedService(db, nil)

	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	root := post(t, tweets, clk, a.ID, "look")
	_, err := engage.ToggleLike(ctx, b.ID, root.ID)
	require.NoError(t, err)
	_, err = engage.CreateReply(ctx, b.ID, root.ID, ReplyInput{Content: "nice"})
	require.NoError(t, err)

	d, err := feed.TweetDetail(ctx, root.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, d.IsLiked)
	require.Len(t, d.Likers, 1)
	assert.Equal(t, b.ID, d.Likers[0].ID)
	require.Len(t, d.Replies, 1)
	assert.Equal(t, "nice", d.Replies[0].Content)
	assert.EqualValues(t, 1, d.Stats.ViewsCount)
	assert.EqualValues(t, 1, reloadTweet(t, db, root.ID).Stats.ViewsCount)
}
