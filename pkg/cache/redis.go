package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/socialgraph/config"
)

// NewRedis connects to redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}
