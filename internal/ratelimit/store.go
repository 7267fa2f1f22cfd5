// Package ratelimit 按 (actor, action) 计数的固定窗口限流，状态全部放在 redis
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision 一次计数后的结果
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetIn   time.Duration
}

// Limiter 由调用方注入，进程内不保存计数
type Limiter interface {
	Allow(ctx context.Context, actor, action string) (Decision, error)
}

type Store struct {
	rdb    *redis.Client
	window time.Duration
	max    int64
	limits map[string]int64
}

// NewStore max 为默认上限，可用 WithLimit 给单个动作单独设置
func NewStore(rdb *redis.Client, window time.Duration, max int64) *Store {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 60
	}
	return &Store{rdb: rdb, window: window, max: max, limits: map[string]int64{}}
}

func (s *Store) WithLimit(action string, max int64) *Store {
	s.limits[action] = max
	return s
}

func (s *Store) limit(action string) int64 {
	if v, ok := s.limits[action]; ok {
		return v
	}
	return s.max
}

func key(actor, action string) string { return fmt.Sprintf("ratelimit:%s:%s", action, actor) }

// Allow INCR 与 EXPIRE NX 在同一个 pipeline 中执行，窗口从第一次计数开始
func (s *Store) Allow(ctx context.Context, actor, action string) (Decision, error) {
	k := key(actor, action)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, s.window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	max := s.limit(action)
	n := incr.Val()
	d := Decision{Allowed: n <= max, Count: n, ResetIn: ttl.Val()}
	if n < max {
		d.Remaining = max - n
	}
	return d, nil
}

// Reset 清除某个动作的计数
func (s *Store) Reset(ctx context.Context, actor, action string) error {
	return s.rdb.Del(ctx, key(actor, action)).Err()
}
