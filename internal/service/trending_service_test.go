package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

// seedCorpus go: 6 条（1 小时内 2 条），rust: 5 条，rare: 2 条
func seedCorpus(t *testing.T, tweets TweetService, clk *clock.Fixed, authors []*model.User) {
	t.Helper()
	for i := 0; i < 4; i++ {
		post(t, tweets, clk, authors[i%len(authors)].ID, fmt.Sprintf("learning #go day %d", i))
	}
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, authors[0].ID, fmt.Sprintf("#rust note %d", i))
	}
	post(t, tweets, clk, authors[1].ID, "#rare find")
	post(t, tweets, clk, authors[1].ID, "#rare again")
	clk.Advance(3 * time.Hour)
	post(t, tweets, clk, authors[2].ID, "#go is fun")
	post(t, tweets, clk, authors[0].ID, "#go again")
}

func snapshotJSON(t *testing.T, topics []*model.TrendingTopic) string {
	t.Helper()
	type row struct {
		Hashtag string
		Score   int64
		Rank    int
		L1, L24 int64
	}
	out := make([]row, len(topics))
	for i, tp := range topics {
		out[i] = row{tp.Hashtag, tp.TrendingScore, tp.Rank, tp.Last1Hour, tp.Last24Hours}
	}
	b, err := json.Marshal(out)
	require.NoError(t, err)
	return string(b)
}

func TestRecompute_ScoresAndRanks(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	authors := []*model.User{seedUser(t, db, "a"), seedUser(t, db, "b"), seedUser(t, db, "c")}
	seedCorpus(t, tweets, clk, authors)

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	ranked, err := svc.RecomputeLocation(ctx, "")
	require.NoError(t, err)
	require.Len(t, ranked, 2, "rare is below the activity threshold")

	goTopic, rustTopic := ranked[0], ranked[1]
	assert.Equal(t, "go", goTopic.Hashtag)
	assert.Equal(t, 1, goTopic.Rank)
	assert.EqualValues(t, 2, goTopic.Last1Hour)
	assert.EqualValues(t, 6, goTopic.Last24Hours)
	assert.EqualValues(t, 3, goTopic.UsersCount)
	assert.Equal(t, model.TrendingScore(2, 6, 6, 3), goTopic.TrendingScore)
	assert.Len(t, goTopic.SampleTweets, 3)

	assert.Equal(t, "rust", rustTopic.Hashtag)
	assert.Equal(t, 2, rustTopic.Rank)
	assert.Equal(t, model.TrendingScore(0, 5, 5, 1), rustTopic.TrendingScore)
	assert.Equal(t, "a", rustTopic.SampleTweets[0].Username)

	top, err := svc.GetTrending(ctx, model.LocationGlobal, "", 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "go", top[0].Hashtag)
}

func TestRecompute_Deterministic(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	authors := []*model.User{seedUser(t, db, "a"), seedUser(t, db, "b"), seedUser(t, db, "c")}
	seedCorpus(t, tweets, clk, authors)

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	first, err := svc.RecomputeLocation(ctx, model.LocationGlobal)
	require.NoError(t, err)
	second, err := svc.RecomputeLocation(ctx, model.LocationGlobal)
	require.NoError(t, err)
	assert.Equal(t, snapshotJSON(t, first), snapshotJSON(t, second))
	assert.EqualValues(t, 2, countRows(t, db, &model.TrendingTopic{}, "location = ?", model.LocationGlobal))
}

func TestRecompute_TieBreakAndStaleRemoval(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	u := seedUser(t, db, "a")
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, u.ID, fmt.Sprintf("#zeta #alpha %d", i))
	}

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	ranked, err := svc.RecomputeLocation(ctx, model.LocationGlobal)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].TrendingScore, ranked[1].TrendingScore)
	assert.Equal(t, "alpha", ranked[0].Hashtag)
	assert.Equal(t, "zeta", ranked[1].Hashtag)

	// 两天后 24 小时窗口为空，快照被移除
	clk.Advance(48 * time.Hour)
	ranked, err = svc.RecomputeLocation(ctx, model.LocationGlobal)
	require.NoError(t, err)
	assert.Empty(t, ranked)
	assert.EqualValues(t, 0, countRows(t, db, &model.TrendingTopic{}, "1 = 1"))
}

func TestRecompute_BlockedAndCategory(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	hashtags := NewHashtagService(db, clk)
	u := seedUser(t, db, "a")
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, u.ID, fmt.Sprintf("#spam #golang %d", i))
	}
	blocked, category := true, "technology"
	require.NoError(t, hashtags.SetFlags(ctx, "spam", HashtagFlags{IsBlocked: &blocked}))
	require.NoError(t, hashtags.SetFlags(ctx, "#golang", HashtagFlags{Category: &category}))

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	ranked, err := svc.RecomputeLocation(ctx, model.LocationGlobal)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "golang", ranked[0].Hashtag)

	tech, err := svc.GetTrending(ctx, "", "technology", 10)
	require.NoError(t, err)
	require.Len(t, tech, 1)
	none, err := svc.GetTrending(ctx, "", "sports", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecompute_Locations(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	u := seedUser(t, db, "a")
	for i := 0; i < 5; i++ {
		_, err := tweets.Create(ctx, u.ID, CreateTweetInput{Content: fmt.Sprintf("#derby %d", i), Location: "GB"})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	post(t, tweets, clk, u.ID, "#derby elsewhere")

	svc := NewTrendingService(db, clk, nil, TrendingOptions{Locations: []string{"global", "gb", "us"}})
	counts, err := svc.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"global": 1, "gb": 1, "us": 0}, counts)

	gb, err := svc.GetTrending(ctx, "GB", "", 10)
	require.NoError(t, err)
	require.Len(t, gb, 1)
	assert.EqualValues(t, 5, gb[0].TweetsCount)

	locs, err := svc.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gb", "global"}, locs)
}

type memTrendCache struct {
	data        map[string][]*model.TrendingTopic
	version     int64
	invalidated []string
}

func (m *memTrendCache) key(loc, cat string, limit int) string {
	return fmt.Sprintf("%s|%s|%d", loc, cat, limit)
}

func (m *memTrendCache) Get(_ context.Context, loc, cat string, limit int) ([]*model.TrendingTopic, bool, error) {
	v, ok := m.data[m.key(loc, cat, limit)]
	return v, ok, nil
}

func (m *memTrendCache) Version(_ context.Context, _ string) (int64, error) {
	return m.version, nil
}

func (m *memTrendCache) Set(_ context.Context, loc, cat string, limit int, version int64, topics []*model.TrendingTopic) error {
	if version != m.version {
		return nil
	}
	m.data[m.key(loc, cat, limit)] = topics
	return nil
}

func (m *memTrendCache) Invalidate(_ context.Context, loc string) error {
	m.invalidated = append(m.invalidated, loc)
	m.version++
	for k := range m.data {
		delete(m.data, k)
	}
	return nil
}

func TestGetTrending_UsesCache(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	cache := &memTrendCache{data: map[string][]*model.TrendingTopic{}}
	svc := NewTrendingService(db, clk, cache, TrendingOptions{})

	cached := []*model.TrendingTopic{{Hashtag: "cached", Rank: 1}}
	cache.data[cache.key("global", "", 10)] = cached
	got, err := svc.GetTrending(ctx, "", "", 10)
	require.NoError(t, err)
	assert.Equal(t, cached, got)

	_, err = svc.RecomputeLocation(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, cache.invalidated)
	got, err = svc.GetTrending(ctx, "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersonalizedTrends(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	graph := NewRelationshipService(db, clk, nil, nil)
	viewer := seedUser(t, db, "viewer")
	friend := seedUser(t, db, "friend")
	other := seedUser(t, db, "other")
	_, err := graph.ToggleFollow(ctx, viewer.ID, friend.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, friend.ID, fmt.Sprintf("#books %d", i))
		post(t, tweets, clk, other.ID, fmt.Sprintf("#films %d", i))
	}

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	_, err = svc.Recompute(ctx)
	require.NoError(t, err)

	got, err := svc.Personalized(ctx, viewer.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "books", got[0].Hashtag)
}

func TestRetention_DropsOldSnapshots(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	u := seedUser(t, db, "a")
	for i := 0; i < 5; i++ {
		post(t, tweets, clk, u.ID, fmt.Sprintf("#old %d", i))
	}
	_, err := NewTrendingService(db, clk, nil, TrendingOptions{}).Recompute(ctx)
	require.NoError(t, err)

	clk.Advance(model.TrendingTTL + time.Minute)
	res, err := NewRetentionService(db, clk).Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Trending)
	assert.EqualValues(t, 0, countRows(t, db, &model.TrendingTopic{}, "1 = 1"))
}

func TestTrendingUsers_RateAndWindow(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFixed(testEpoch)
	ctx := context.Background()
	tweets := NewTweetService(db, clk, nil)
	engage := func(id string, likes, retweets, replies int64) {
		require.NoError(t, db.Model(&model.Tweet{}).Where("id = ?", id).UpdateColumns(map[string]any{
			"likes_count": likes, "retweets_count": retweets, "replies_count": replies,
		}).Error)
	}

	old := seedUser(t, db, "old")
	engage(post(t, tweets, clk, old.ID, "yesterday").ID, 100, 0, 0)
	clk.Advance(25 * time.Hour)

	a, b, c, s := seedUser(t, db, "a"), seedUser(t, db, "b"), seedUser(t, db, "c"), seedUser(t, db, "s")
	engage(post(t, tweets, clk, a.ID, "one").ID, 2, 1, 0)
	engage(post(t, tweets, clk, a.ID, "two").ID, 1, 0, 0)
	engage(post(t, tweets, clk, b.ID, "three").ID, 1, 1, 1)
	hidden, err := tweets.Create(ctx, c.ID, CreateTweetInput{Content: "friends only", Visibility: "followers"})
	require.NoError(t, err)
	engage(hidden.ID, 50, 0, 0)
	engage(post(t, tweets, clk, s.ID, "banned soon").ID, 10, 0, 0)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", s.ID).Update("is_suspended", true).Error)

	svc := NewTrendingService(db, clk, nil, TrendingOptions{})
	users, err := svc.TrendingUsers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b", users[0].User.Username)
	assert.EqualValues(t, 3, users[0].EngagementRate)
	assert.Equal(t, "a", users[1].User.Username)
	assert.EqualValues(t, 2, users[1].TweetCount)
	assert.EqualValues(t, 4, users[1].TotalEngagement)
	assert.EqualValues(t, 2, users[1].EngagementRate)

	users, err = svc.TrendingUsers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b", users[0].User.Username)
}
