package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/repository"
)

// FollowingIndex 关注列表 id 索引，存为 redis list，时间线读取时用来确定作者集合
type FollowingIndex struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration

	hits  atomic.Int64
	loads atomic.Int64
}

func NewFollowingIndex(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *FollowingIndex {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FollowingIndex{db: db, rdb: rdb, ttl: ttl}
}

func followingKey(userID string) string { return fmt.Sprintf("following:index:%s", userID) }

func followingGenKey(userID string) string { return fmt.Sprintf("following:gen:%s", userID) }

// KEYS[1] 数据 list，KEYS[2] 代数；ARGV[1] 回源前读到的代数，ARGV[2] ttl 毫秒，其余为 id
var fillFollowing = redis.NewScript(`
if tonumber(redis.call('GET', KEYS[2]) or '0') ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('DEL', KEYS[1])
for i = 3, #ARGV do
  redis.call('RPUSH', KEYS[1], ARGV[i])
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// FolloweeIDs 命中直接返回整个 list，未命中回源并回填
func (f *FollowingIndex) FolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	key := followingKey(userID)
	n, err := f.rdb.Exists(ctx, key).Result()
	if err == nil && n > 0 {
		ids, err := f.rdb.LRange(ctx, key, 0, -1).Result()
		if err == nil {
			f.hits.Add(1)
			return ids, nil
		}
	}
	return f.load(ctx, userID)
}

// load 回源前先记下代数，回填时代数已变说明期间发生过失效，放弃回填
func (f *FollowingIndex) load(ctx context.Context, userID string) ([]string, error) {
	f.loads.Add(1)
	gen, genErr := generation(ctx, f.rdb, followingGenKey(userID))
	ids, err := repository.NewFollowRepository(f.db).FolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	// 空列表不缓存
	if genErr == nil && len(ids) > 0 {
		args := make([]interface{}, 0, len(ids)+2)
		args = append(args, gen, f.ttl.Milliseconds())
		args = append(args, interfaceSlice(ids)...)
		_ = fillFollowing.Run(ctx, f.rdb, []string{followingKey(userID), followingGenKey(userID)}, args...).Err()
	}
	return ids, nil
}

// Invalidate 关注关系变化后删除索引并推进代数，下次读取时重建
func (f *FollowingIndex) Invalidate(ctx context.Context, userID string) error {
	return bumpGeneration(ctx, f.rdb, followingGenKey(userID), followingKey(userID))
}

// IndexCounters 命中与回源次数
type IndexCounters struct {
	Hits  int64
	Loads int64
}

func (f *FollowingIndex) Counters() IndexCounters {
	return IndexCounters{Hits: f.hits.Load(), Loads: f.loads.Load()}
}

func (f *FollowingIndex) ResetCounters() {
	f.hits.Store(0)
	f.loads.Store(0)
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}
