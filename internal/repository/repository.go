// Package repository provides the ledger and idempotency stores used by the reconciler.
package repository

import (
	"context"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
)

// TransactionRepository defines the interface for ledger data access.
//
// ApplyTransition is a compare-and-set on the version: it persists txn's
// status-bearing fields and appends event only if the stored version still
// equals expectedVersion. On success txn.Version is advanced and event is
// appended to txn.RawEvents.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByReference(ctx context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error)
	ApplyTransition(ctx context.Context, txn *models.Transaction, expectedVersion int64, event models.RawEvent) error
	AppendEvent(ctx context.Context, id uuid.UUID, event models.RawEvent) (bool, error)
	RecordUnmatched(ctx context.Context, event *models.UnmatchedEvent) error
	ListUnmatched(ctx context.Context, kind models.GatewayKind, limit int) ([]models.UnmatchedEvent, error)
}

// IdempotencyRepository defines the interface for idempotency key storage.
// Get returns nil, nil when the key has not been stored. Store keeps the
// first response written for a key.
type IdempotencyRepository interface {
	Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error)
	Store(ctx context.Context, idempotencyKey *models.IdempotencyKey) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const defaultUnmatchedLimit = 100

func unmatchedLimit(limit int) int {
	if limit <= 0 {
		return defaultUnmatchedLimit
	}
	return limit
}
