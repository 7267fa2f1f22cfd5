package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

func TestSendMessage(t *testing.T) {
	db := setupDB(t)
	rec := &recorder{}
	svc := NewMessageService(db, clock.NewFixed(testEpoch), rec)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	_, err := svc.Send(ctx, a.ID, a.ID, "hi me")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.Send(ctx, a.ID, b.ID, strings.Repeat("x", MaxMessageLength+1))
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	m1, err := svc.Send(ctx, a.ID, b.ID, "hi bob")
	require.NoError(t, err)
	m2, err := svc.Send(ctx, b.ID, a.ID, "hey alice")
	require.NoError(t, err)
	assert.Equal(t, m1.ConversationID, m2.ConversationID, "one conversation per pair")
	_, err = svc.Send(ctx, a.ID, b.ID, "how are you")
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	convs, err := svc.ListConversations(ctx, b.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, convs.Items, 1)
	assert.Equal(t, a.ID, convs.Items[0].Other.ID)
	assert.EqualValues(t, 2, convs.Items[0].UnreadCount)
	assert.Equal(t, "how are you", convs.Items[0].LastPreview)

	_, err = svc.MarkRead(ctx, b.ID, m1.ConversationID)
	require.NoError(t, err)
	n, err = svc.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.Len(t, rec.of(model.NotifyMessage), 3)
}

func TestDeleteMessage_Paired(t *testing.T) {
	db := setupDB(t)
	svc := NewMessageService(db, clock.NewFixed(testEpoch), nil)
	ctx := context.Background()
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	c := seedUser(t, db, "carol")

	m, err := svc.Send(ctx, a.ID, b.ID, "secret")
	require.NoError(t, err)

	err = svc.DeleteMessage(ctx, c.ID, m.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = svc.ListMessages(ctx, c.ID, m.ConversationID, 1, 20)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	require.NoError(t, svc.DeleteMessage(ctx, a.ID, m.ID))
	var stored model.Message
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	assert.True(t, stored.DeletedBySender)
	assert.False(t, stored.IsDeleted)

	mine, err := svc.ListMessages(ctx, a.ID, m.ConversationID, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, mine.Items)
	theirs, err := svc.ListMessages(ctx, b.ID, m.ConversationID, 1, 20)
	require.NoError(t, err)
	assert.Len(t, theirs.Items, 1)

	err = svc.DeleteMessage(ctx, a.ID, m.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.DeleteMessage(ctx, b.ID, m.ID))
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	assert.True(t, stored.IsDeleted)
}
