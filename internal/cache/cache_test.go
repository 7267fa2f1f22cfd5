package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/socialgraph/internal/model"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Follow{}))
	return db
}

func follow(t *testing.T, db *gorm.DB, from, to string, status model.FollowStatus) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&model.Follow{
		ID: uuid.New().String(), FollowerID: from, FolloweeID: to, Status: status, CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func TestFollowingIndex(t *testing.T) {
	mr, rdb := setupRedis(t)
	db := setupDB(t)
	ctx := context.Background()
	follow(t, db, "u1", "a", model.FollowAccepted)
	follow(t, db, "u1", "b", model.FollowAccepted)
	follow(t, db, "u1", "c", model.FollowPending)

	idx := NewFollowingIndex(db, rdb, time.Minute)
	ids, err := idx.FolloweeIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.True(t, mr.Exists(followingKey("u1")))

	ids, err = idx.FolloweeIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, IndexCounters{Hits: 1, Loads: 1}, idx.Counters())

	follow(t, db, "u1", "d", model.FollowAccepted)
	require.NoError(t, idx.Invalidate(ctx, "u1"))
	ids, err = idx.FolloweeIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.EqualValues(t, 2, idx.Counters().Loads)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(followingKey("u1")))
}

func TestFollowingIndex_EmptyNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	idx := NewFollowingIndex(setupDB(t), rdb, time.Minute)

	ids, err := idx.FolloweeIDs(context.Background(), "loner")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, mr.Exists(followingKey("loner")))
}

func TestTrendingCache(t *testing.T) {
	mr, rdb := setupRedis(t)
	c := NewTrendingCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "global", "", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	topics := []*model.TrendingTopic{{Hashtag: "go", Rank: 1, TrendingScore: 67}}
	require.NoError(t, c.Set(ctx, "global", "", 10, 0, topics))
	require.NoError(t, c.Set(ctx, "global", "sports", 5, 0, nil))
	require.NoError(t, c.Set(ctx, "gb", "", 10, 0, topics))

	got, ok, err := c.Get(ctx, "global", "", 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "go", got[0].Hashtag)
	assert.EqualValues(t, 67, got[0].TrendingScore)

	require.NoError(t, c.Invalidate(ctx, "global"))
	_, ok, err = c.Get(ctx, "global", "sports", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Get(ctx, "gb", "", 10)
	require.NoError(t, err)
	assert.True(t, ok, "other locations untouched")

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "gb", "", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollowingIndex_InvalidateDuringLoad(t *testing.T) {
	mr, rdb := setupRedis(t)
	db := setupDB(t)
	ctx := context.Background()
	follow(t, db, "u1", "a", model.FollowAccepted)
	idx := NewFollowingIndex(db, rdb, time.Minute)

	// 回源查询返回后、回填之前，另一个请求取消关注并失效索引
	var once sync.Once
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:unfollow_between", func(*gorm.DB) {
		once.Do(func() {
			require.NoError(t, db.Session(&gorm.Session{NewDB: true}).
				Where("follower_id = ? AND followee_id = ?", "u1", "a").Delete(&model.Follow{}).Error)
			require.NoError(t, idx.Invalidate(ctx, "u1"))
		})
	}))

	ids, err := idx.FolloweeIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
	assert.False(t, mr.Exists(followingKey("u1")), "stale snapshot must not be written back")

	ids, err = idx.FolloweeIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTrendingCache_StaleVersionDropped(t *testing.T) {
	_, rdb := setupRedis(t)
	c := NewTrendingCache(rdb, time.Minute)
	ctx := context.Background()

	v, err := c.Version(ctx, "global")
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)

	// 读到旧版本后发生重算
	require.NoError(t, c.Invalidate(ctx, "global"))
	stale := []*model.TrendingTopic{{Hashtag: "old", Rank: 1}}
	require.NoError(t, c.Set(ctx, "global", "", 10, v, stale))
	_, ok, err := c.Get(ctx, "global", "", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = c.Version(ctx, "global")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	require.NoError(t, c.Set(ctx, "global", "", 10, v, stale))
	got, ok, err := c.Get(ctx, "global", "", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", got[0].Hashtag)
}
