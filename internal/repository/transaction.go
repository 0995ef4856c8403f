package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/db"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// transactionRepository implements TransactionRepository on Postgres
type transactionRepository struct {
	db *db.DB
}

// NewTransactionRepository creates a new Postgres-backed TransactionRepository
func NewTransactionRepository(database *db.DB) TransactionRepository {
	return &transactionRepository{db: database}
}

const selectTransaction = `
	SELECT id, gateway_kind, gateway_reference, secondary_reference, receipt,
	       failure_reason, user_ref, amount, currency, status, metadata,
	       version, created_at, updated_at
	FROM transactions
`

// Create inserts the transaction together with its initial events
func (r *transactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Version == 0 {
		txn.Version = 1
	}

	metadata, err := marshalMetadata(txn.Metadata)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO transactions (
				id, gateway_kind, gateway_reference, secondary_reference, receipt,
				failure_reason, user_ref, amount, currency, status, metadata, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			txn.ID,
			txn.GatewayKind,
			txn.GatewayReference,
			txn.SecondaryReference,
			txn.Receipt,
			txn.FailureReason,
			txn.UserRef,
			txn.Amount,
			txn.Currency,
			txn.Status,
			metadata,
			txn.Version,
		).Scan(&txn.CreatedAt, &txn.UpdatedAt)
		if isUniqueViolation(err) {
			return models.ErrDuplicateTransaction
		}
		if err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		for i := range txn.RawEvents {
			txn.RawEvents[i].Seq = i + 1
			if _, err := insertEvent(ctx, tx, txn.ID, txn.RawEvents[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID retrieves a transaction and its events by ID
func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransaction+" WHERE id = $1", id))
	if err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// FindByReference retrieves a transaction by its gateway kind and reference
func (r *transactionRepository) FindByReference(ctx context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+" WHERE gateway_kind = $1 AND gateway_reference = $2", kind, reference)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ApplyTransition writes the new status and its event in one database transaction
func (r *transactionRepository) ApplyTransition(ctx context.Context, txn *models.Transaction, expectedVersion int64, event models.RawEvent) error {
	var updatedAt time.Time

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE transactions
			SET status = $3,
			    secondary_reference = $4,
			    receipt = $5,
			    failure_reason = $6,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $1 AND version = $2
			RETURNING updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			txn.ID,
			expectedVersion,
			txn.Status,
			txn.SecondaryReference,
			txn.Receipt,
			txn.FailureReason,
		).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}

		inserted, err := insertEvent(ctx, tx, txn.ID, event)
		if err != nil {
			return err
		}
		if !inserted {
			return models.ErrDuplicateEvent
		}
		return nil
	})
	if err != nil {
		return err
	}

	txn.Version = expectedVersion + 1
	txn.UpdatedAt = updatedAt
	event.Seq = len(txn.RawEvents) + 1
	txn.RawEvents = append(txn.RawEvents, event)
	return nil
}

// AppendEvent records an audit-only event. It reports false when the dedup key was already present.
func (r *transactionRepository) AppendEvent(ctx context.Context, id uuid.UUID, event models.RawEvent) (bool, error) {
	return insertEvent(ctx, r.db, id, event)
}

// RecordUnmatched stores a notification that referenced no known transaction
func (r *transactionRepository) RecordUnmatched(ctx context.Context, event *models.UnmatchedEvent) error {
	query := `
		INSERT INTO unmatched_events (gateway_kind, dedup_key, gateway_reference, outcome, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (gateway_kind, dedup_key) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.GatewayKind,
		event.DedupKey,
		event.GatewayReference,
		event.Outcome,
		nullableJSON(event.Payload),
		event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record unmatched event: %w", err)
	}
	return nil
}

// ListUnmatched returns the most recent unmatched notifications, optionally filtered by kind
func (r *transactionRepository) ListUnmatched(ctx context.Context, kind models.GatewayKind, limit int) ([]models.UnmatchedEvent, error) {
	query := `
		SELECT gateway_kind, dedup_key, gateway_reference, outcome, payload, received_at
		FROM unmatched_events
		WHERE ($1::text = '' OR gateway_kind = $1::text)
		ORDER BY received_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(kind), unmatchedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched events: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // close error is not actionable after iteration
	}()

	var events []models.UnmatchedEvent
	for rows.Next() {
		var (
			ev      models.UnmatchedEvent
			payload []byte
		)
		if err := rows.Scan(&ev.GatewayKind, &ev.DedupKey, &ev.GatewayReference, &ev.Outcome, &payload, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unmatched event: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *transactionRepository) loadEvents(ctx context.Context, txn *models.Transaction) error {
	query := `
		SELECT dedup_key, source, outcome, disposition, from_status, to_status,
		       reason, receipt, secondary_reference, payload, received_at
		FROM transaction_events
		WHERE transaction_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to load transaction events: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // close error is not actionable after iteration
	}()

	txn.RawEvents = nil
	for rows.Next() {
		var (
			ev      models.RawEvent
			payload []byte
		)
		err := rows.Scan(
			&ev.DedupKey,
			&ev.Source,
			&ev.Outcome,
			&ev.Disposition,
			&ev.FromStatus,
			&ev.ToStatus,
			&ev.Reason,
			&ev.Receipt,
			&ev.SecondaryReference,
			&payload,
			&ev.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan transaction event: %w", err)
		}
		ev.Payload = payload
		ev.Seq = len(txn.RawEvents) + 1
		txn.RawEvents = append(txn.RawEvents, ev)
	}
	return rows.Err()
}

func insertEvent(ctx context.Context, q db.DBTX, id uuid.UUID, event models.RawEvent) (bool, error) {
	query := `
		INSERT INTO transaction_events (
			transaction_id, dedup_key, source, outcome, disposition, from_status,
			to_status, reason, receipt, secondary_reference, payload, received_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (transaction_id, dedup_key) DO NOTHING
	`
	result, err := q.ExecContext(ctx, query,
		id,
		event.DedupKey,
		event.Source,
		event.Outcome,
		event.Disposition,
		event.FromStatus,
		event.ToStatus,
		event.Reason,
		event.Receipt,
		event.SecondaryReference,
		nullableJSON(event.Payload),
		event.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append transaction event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func scanTransaction(row *sql.Row) (*models.Transaction, error) {
	var (
		txn      models.Transaction
		metadata []byte
	)
	err := row.Scan(
		&txn.ID,
		&txn.GatewayKind,
		&txn.GatewayReference,
		&txn.SecondaryReference,
		&txn.Receipt,
		&txn.FailureReason,
		&txn.UserRef,
		&txn.Amount,
		&txn.Currency,
		&txn.Status,
		&metadata,
		&txn.Version,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &txn.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &txn, nil
}

func marshalMetadata(metadata map[string]any) (any, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

func nullableJSON(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return []byte(payload)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
