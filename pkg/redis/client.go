// Package redis builds the shared Redis client used for dialog state,
// idempotency and rate limiting.
package redis

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/teyvat-tools/resin-bot/pkg/config"
)

// New creates a Redis client from cfg and verifies the connection with Ping.
// The returned client reports per-command metrics through a hook.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rdb.AddHook(newMetricsHook())

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return rdb, nil
}
