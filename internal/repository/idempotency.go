package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/db"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

// idempotencyRepository implements IdempotencyRepository on Postgres
type idempotencyRepository struct {
	db *db.DB
}

// NewIdempotencyRepository creates a new Postgres-backed IdempotencyRepository
func NewIdempotencyRepository(database *db.DB) IdempotencyRepository {
	return &idempotencyRepository{db: database}
}

// Get retrieves a stored response by key and request path
func (r *idempotencyRepository) Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	query := `
		SELECT key, request_path, response_status, response_body, created_at
		FROM idempotency_keys
		WHERE key = $1 AND request_path = $2
	`

	var idempotencyKey models.IdempotencyKey
	err := r.db.QueryRowContext(ctx, query, key, requestPath).Scan(
		&idempotencyKey.Key,
		&idempotencyKey.RequestPath,
		&idempotencyKey.ResponseStatus,
		&idempotencyKey.ResponseBody,
		&idempotencyKey.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	return &idempotencyKey, nil
}

// Store saves a response; an existing entry for the same key and path is kept
func (r *idempotencyRepository) Store(ctx context.Context, idempotencyKey *models.IdempotencyKey) error {
	if idempotencyKey.CreatedAt.IsZero() {
		idempotencyKey.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO idempotency_keys (key, request_path, response_status, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key, request_path) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		idempotencyKey.Key,
		idempotencyKey.RequestPath,
		idempotencyKey.ResponseStatus,
		idempotencyKey.ResponseBody,
		idempotencyKey.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan removes keys created before cutoff and returns how many were removed
func (r *idempotencyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idempotency keys: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
