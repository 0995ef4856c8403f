package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:"

// redisIdempotencyRepository stores idempotency entries as JSON strings that expire after ttl
type redisIdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyRepository creates a Redis-backed IdempotencyRepository
func NewRedisIdempotencyRepository(client *redis.Client, ttl time.Duration) IdempotencyRepository {
	return &redisIdempotencyRepository{client: client, ttl: ttl}
}

func redisIdempotencyKey(key, requestPath string) string {
	return fmt.Sprintf("%s%s:%s", idempotencyKeyPrefix, requestPath, key)
}

func (r *redisIdempotencyRepository) Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	raw, err := r.client.Get(ctx, redisIdempotencyKey(key, requestPath)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var entry models.IdempotencyKey
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency key: %w", err)
	}
	return &entry, nil
}

func (r *redisIdempotencyRepository) Store(ctx context.Context, idempotencyKey *models.IdempotencyKey) error {
	if idempotencyKey.CreatedAt.IsZero() {
		idempotencyKey.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(idempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency key: %w", err)
	}

	// SETNX keeps the first stored response.
	err = r.client.SetNX(ctx, redisIdempotencyKey(idempotencyKey.Key, idempotencyKey.RequestPath), raw, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan scans the idempotency keyspace and removes entries created
// before cutoff. Entries also expire on their own after the configured TTL.
func (r *redisIdempotencyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	iter := r.client.Scan(ctx, 0, idempotencyKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		raw, err := r.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		var entry models.IdempotencyKey
		if err := json.Unmarshal(raw, &entry); err != nil || entry.CreatedAt.Before(cutoff) {
			n, err := r.client.Del(ctx, redisKey).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete idempotency key: %w", err)
			}
			deleted += n
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan idempotency keys: %w", err)
	}
	return deleted, nil
}
