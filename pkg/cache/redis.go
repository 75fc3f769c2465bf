package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecorvi/schmng-api/pkg/config"
)

// NewRedis dials the Redis instance backing the dashboard summary cache and checks it with
// a ping bounded by ctx. A nil client means caching is off and every cache read is a miss.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
