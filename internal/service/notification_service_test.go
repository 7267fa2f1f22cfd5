package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

func TestSend_SnapshotsSender(t *testing.T) {
	db := setupDB(t)
	svc := NewNotificationService(db, clock.NewFixed(testEpoch))
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	n, err := svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: model.NotifyFollow})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "New follower", n.Title)
	assert.Equal(t, "alice", n.FromDisplayName)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", a.ID).Update("display_name", "Alice B").Error)
	page, err := svc.List(ctx, b.ID, NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alice", page.Items[0].FromDisplayName)
	assert.EqualValues(t, 1, page.UnreadCount)
}

func TestSend_PreferencesAndSelf(t *testing.T) {
	db := setupDB(t)
	svc := NewNotificationService(db, clock.NewFixed(testEpoch))
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob", func(u *model.User) {
		u.Notify.Likes = false
		u.Notify.Retweets = false
	})

	for _, typ := range []model.NotificationType{model.NotifyLike, model.NotifyRetweet, model.NotifyQuote} {
		n, err := svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: typ, TweetID: "t1"})
		require.NoError(t, err)
		assert.Nil(t, n, typ)
	}
	n, err := svc.Send(ctx, NotifyEvent{RecipientID: a.ID, FromUserID: a.ID, Type: model.NotifyLike})
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: model.NotifyReply, TweetID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NotNil(t, n.RelatedTweetID)
	assert.Equal(t, "t1", *n.RelatedTweetID)
	assert.EqualValues(t, 1, countRows(t, db, &model.Notification{}, "user_id = ?", b.ID))

	_, err = svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: "poke"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestNotificationInbox(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	svc := NewNotificationService(db, clk)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	var ids []string
	for _, typ := range []model.NotificationType{model.NotifyLike, model.NotifyFollow, model.NotifyLike} {
		n, err := svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: typ})
		require.NoError(t, err)
		ids = append(ids, n.ID)
		clk.Advance(time.Second)
	}

	likes, err := svc.List(ctx, b.ID, NotificationQuery{Type: model.NotifyLike})
	require.NoError(t, err)
	assert.Len(t, likes.Items, 2)
	assert.Equal(t, ids[2], likes.Items[0].ID, "newest first")

	assert.ErrorIs(t, svc.MarkRead(ctx, a.ID, ids[0]), apperr.ErrPermissionDenied)
	require.NoError(t, svc.MarkRead(ctx, b.ID, ids[0]))
	unread, err := svc.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	onlyUnread, err := svc.List(ctx, b.ID, NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, onlyUnread.Items, 2)

	n, err := svc.MarkAllRead(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.ErrorIs(t, svc.Delete(ctx, a.ID, ids[1]), apperr.ErrPermissionDenied)
	require.NoError(t, svc.Delete(ctx, b.ID, ids[1]))
	assert.ErrorIs(t, svc.Delete(ctx, b.ID, ids[1]), apperr.ErrNotFound)

	n, err = svc.DeleteAll(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestNotifications_ExpireAfterTTL(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	svc := NewNotificationService(db, clk)
	retention := NewRetentionService(db, clk)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	_, err := svc.Send(ctx, NotifyEvent{RecipientID: b.ID, FromUserID: a.ID, Type: model.NotifyFollow})
	require.NoError(t, err)
	clk.Advance(model.NotificationTTL + time.Hour)

	page, err := svc.List(ctx, b.ID, NotificationQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	res, err := retention.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Notifications)
	assert.EqualValues(t, 0, countRows(t, db, &model.Notification{}, "1 = 1"))
}
