package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/socialgraph/internal/model"
)

// TrendingCache 每个地区一个 hash，field 为 category:limit，重算后整体删除
type TrendingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTrendingCache(rdb *redis.Client, ttl time.Duration) *TrendingCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TrendingCache{rdb: rdb, ttl: ttl}
}

func trendingKey(location string) string { return "trending:" + location }

func trendingGenKey(location string) string { return "trending:gen:" + location }

// KEYS[1] 地区 hash，KEYS[2] 代数；ARGV 依次为代数、field、payload、ttl 毫秒
var fillTrending = redis.NewScript(`
if tonumber(redis.call('GET', KEYS[2]) or '0') ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

func trendingField(category string, limit int) string {
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("%s:%d", category, limit)
}

func (c *TrendingCache) Get(ctx context.Context, location, category string, limit int) ([]*model.TrendingTopic, bool, error) {
	data, err := c.rdb.HGet(ctx, trendingKey(location), trendingField(category, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []*model.TrendingTopic
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Version 回源查询前调用，结果交给 Set
func (c *TrendingCache) Version(ctx context.Context, location string) (int64, error) {
	return generation(ctx, c.rdb, trendingGenKey(location))
}

// Set 仅当代数仍为 version 时写入，重算期间读到的旧名次不会回填
func (c *TrendingCache) Set(ctx context.Context, location, category string, limit int, version int64, topics []*model.TrendingTopic) error {
	payload, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	keys := []string{trendingKey(location), trendingGenKey(location)}
	return fillTrending.Run(ctx, c.rdb, keys, version, trendingField(category, limit), payload, c.ttl.Milliseconds()).Err()
}

func (c *TrendingCache) Invalidate(ctx context.Context, location string) error {
	return bumpGeneration(ctx, c.rdb, trendingGenKey(location), trendingKey(location))
}
