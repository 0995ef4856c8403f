package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
)

type referenceKey struct {
	kind      models.GatewayKind
	reference string
}

type unmatchedKey struct {
	kind     models.GatewayKind
	dedupKey string
}

// memoryTransactionRepository keeps the ledger in process memory. Values are
// cloned on the way in and out so callers never share state with the store.
type memoryTransactionRepository struct {
	byID        map[uuid.UUID]*models.Transaction
	byReference map[referenceKey]uuid.UUID
	unmatched   map[unmatchedKey]models.UnmatchedEvent
	mu          sync.RWMutex
}

// NewMemoryTransactionRepository creates an in-memory TransactionRepository
func NewMemoryTransactionRepository() TransactionRepository {
	return &memoryTransactionRepository{
		byID:        make(map[uuid.UUID]*models.Transaction),
		byReference: make(map[referenceKey]uuid.UUID),
		unmatched:   make(map[unmatchedKey]models.UnmatchedEvent),
	}
}

func (r *memoryTransactionRepository) Create(_ context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := referenceKey{kind: txn.GatewayKind, reference: txn.GatewayReference}
	if _, exists := r.byReference[key]; exists {
		return models.ErrDuplicateTransaction
	}

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Version == 0 {
		txn.Version = 1
	}
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	for i := range txn.RawEvents {
		txn.RawEvents[i].Seq = i + 1
	}

	r.byID[txn.ID] = txn.Clone()
	r.byReference[key] = txn.ID
	return nil
}

func (r *memoryTransactionRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *memoryTransactionRepository) FindByReference(_ context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byReference[referenceKey{kind: kind, reference: reference}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *memoryTransactionRepository) ApplyTransition(_ context.Context, txn *models.Transaction, expectedVersion int64, event models.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[txn.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return models.ErrVersionConflict
	}
	if stored.FindEvent(event.DedupKey) != nil {
		return models.ErrDuplicateEvent
	}

	event.Seq = len(stored.RawEvents) + 1
	stored.Status = txn.Status
	stored.SecondaryReference = txn.SecondaryReference
	stored.Receipt = txn.Receipt
	stored.FailureReason = txn.FailureReason
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now().UTC()
	stored.RawEvents = append(stored.RawEvents, event)

	txn.Version = stored.Version
	txn.UpdatedAt = stored.UpdatedAt
	txn.RawEvents = append(txn.RawEvents, event)
	return nil
}

func (r *memoryTransactionRepository) AppendEvent(_ context.Context, id uuid.UUID, event models.RawEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if stored.FindEvent(event.DedupKey) != nil {
		return false, nil
	}
	event.Seq = len(stored.RawEvents) + 1
	stored.RawEvents = append(stored.RawEvents, event)
	return true, nil
}

func (r *memoryTransactionRepository) RecordUnmatched(_ context.Context, event *models.UnmatchedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := unmatchedKey{kind: event.GatewayKind, dedupKey: event.DedupKey}
	if _, exists := r.unmatched[key]; !exists {
		r.unmatched[key] = *event
	}
	return nil
}

func (r *memoryTransactionRepository) ListUnmatched(_ context.Context, kind models.GatewayKind, limit int) ([]models.UnmatchedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []models.UnmatchedEvent
	for _, ev := range r.unmatched {
		if kind == "" || ev.GatewayKind == kind {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ReceivedAt.After(events[j].ReceivedAt)
	})

	if n := unmatchedLimit(limit); len(events) > n {
		events = events[:n]
	}
	return events, nil
}

type idempotencyEntryKey struct {
	key         string
	requestPath string
}

// memoryIdempotencyRepository implements IdempotencyRepository in process memory
type memoryIdempotencyRepository struct {
	entries map[idempotencyEntryKey]models.IdempotencyKey
	mu      sync.RWMutex
}

// NewMemoryIdempotencyRepository creates an in-memory IdempotencyRepository
func NewMemoryIdempotencyRepository() IdempotencyRepository {
	return &memoryIdempotencyRepository{entries: make(map[idempotencyEntryKey]models.IdempotencyKey)}
}

func (r *memoryIdempotencyRepository) Get(_ context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[idempotencyEntryKey{key: key, requestPath: requestPath}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *memoryIdempotencyRepository) Store(_ context.Context, idempotencyKey *models.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idempotencyKey.CreatedAt.IsZero() {
		idempotencyKey.CreatedAt = time.Now().UTC()
	}
	k := idempotencyEntryKey{key: idempotencyKey.Key, requestPath: idempotencyKey.RequestPath}
	if _, exists := r.entries[k]; !exists {
		r.entries[k] = *idempotencyKey
	}
	return nil
}

func (r *memoryIdempotencyRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for k, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.entries, k)
			deleted++
		}
	}
	return deleted, nil
}
