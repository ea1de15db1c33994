// Package redisstore implements the shared key-value store layer: the atomic
// pending-batch scripts plus the hash, set and list structures the
// notification pipeline keeps in Redis.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"notifier/internal/config"
)

// NewClient connects to Redis and verifies the connection with a ping.
// A failed ping is a startup-fatal misconfiguration, not a transient error.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(
		&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	return client, nil
}
