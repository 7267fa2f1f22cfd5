package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 代数键的过期时间，需远大于一次回源的耗时
const generationTTL = 24 * time.Hour

// generation 读取缓存键当前代数，不存在视为 0
func generation(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	gen, err := rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// bumpGeneration 代数加一并删除数据键，之前读到旧代数的回填全部作废
func bumpGeneration(ctx context.Context, rdb *redis.Client, genKey, dataKey string) error {
	pipe := rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, dataKey)
	_, err := pipe.Exec(ctx)
	return err
}
