package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis creates a Redis client and verifies it answers a ping.
func ConnectRedis(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to redis", "addr", cfg.Addr, "db", cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // client is unusable anyway
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
