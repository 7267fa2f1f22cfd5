package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

func TestHashtagDetails(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	svc := NewHashtagService(db, clk)
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, a.ID, fmt.Sprintf("#go #cloud %d", i))
	}
	post(t, tweets, clk, b.ID, "#go #wasm")
	_, err := tweets.Create(ctx, b.ID, CreateTweetInput{Content: "#go hidden", Visibility: "followers"})
	require.NoError(t, err)

	_, err = NewTrendingService(db, clk, nil, TrendingOptions{}).Recompute(ctx)
	require.NoError(t, err)

	d, err := svc.Details(ctx, "#Go", "", "")
	require.NoError(t, err)
	assert.Equal(t, "go", d.Hashtag)
	require.NotNil(t, d.Trending)
	assert.Equal(t, 1, d.Trending.Rank)
	assert.EqualValues(t, 7, d.Stats.TotalUsage)
	assert.EqualValues(t, 2, d.Stats.UniqueUsers)
	assert.Len(t, d.RecentTweets, 6, "public tweets only")
	require.Len(t, d.Related, 2)
	assert.Equal(t, "cloud", d.Related[0].Related)
	assert.EqualValues(t, 5, d.Related[0].Frequency)

	_, err = svc.Details(ctx, "nothing", "", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHashtagSuggestAndReset(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	svc := NewHashtagService(db, clk)
	a := seedUser(t, db, "alice")
	post(t, tweets, clk, a.ID, "#golang #go_tips")
	post(t, tweets, clk, a.ID, "#golang again")
	post(t, tweets, clk, a.ID, "#gopher #goxtips")

	got, err := svc.Suggest(ctx, "go", 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "golang", got[0].Tag)

	got, err = svc.Suggest(ctx, "go_", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "underscore is literal")
	assert.Equal(t, "go_tips", got[0].Tag)

	_, err = svc.Suggest(ctx, "go%", 10)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	n, err := svc.ResetWindow(ctx, model.WindowToday)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	var h model.Hashtag
	require.NoError(t, db.First(&h, "hashtag = ?", "golang").Error)
	assert.EqualValues(t, 0, h.Today)
	assert.EqualValues(t, 2, h.ThisWeek)
	assert.EqualValues(t, 2, h.TotalUsage)

	_, err = svc.ResetWindow(ctx, "yearly")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	bad := "cooking"
	assert.ErrorIs(t, svc.SetFlags(ctx, "golang", HashtagFlags{Category: &bad}), apperr.ErrInvalid)
	promoted := true
	assert.ErrorIs(t, svc.SetFlags(ctx, "missing", HashtagFlags{IsPromoted: &promoted}), apperr.ErrNotFound)
}
