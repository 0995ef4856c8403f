package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/events"
	"github.com/benx421/payment-gateway/reconciler/internal/lock"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/google/uuid"
)

const defaultApplyRetries = 5

// ApplyResult reports what Apply did with an event. Transaction is nil for
// DispositionUnknownReference.
type ApplyResult struct {
	Transaction *models.Transaction
	Event       *models.RawEvent
	Disposition models.Disposition
}

// EngineConfig wires the reconciliation engine
type EngineConfig struct {
	Repo       repository.TransactionRepository
	Locker     lock.Locker
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	MaxRetries int
}

// Engine is the only writer of transaction status. Every gateway notification,
// client return, and capture result passes through Apply.
type Engine struct {
	repo       repository.TransactionRepository
	locker     lock.Locker
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
}

// NewEngine creates an Engine. A nil Locker, Publisher or Metrics falls back
// to an in-process keyed mutex, a no-op publisher, and a private registry.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		repo:       cfg.Repo,
		locker:     cfg.Locker,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
		maxRetries: cfg.MaxRetries,
	}
	if e.locker == nil {
		e.locker = lock.NewKeyedMutex()
	}
	if e.publisher == nil {
		e.publisher = events.NoopPublisher{}
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.maxRetries < 1 {
		e.maxRetries = defaultApplyRetries
	}
	return e
}

func transactionLockKey(kind models.GatewayKind, reference string) string {
	return fmt.Sprintf("txn:%s:%s", kind, reference)
}

// Apply records a normalized event against the transaction it references.
//
// Duplicates (same dedup key) leave the transaction untouched. Events aimed at
// a terminal transaction are appended as STALE, and events with no transition
// from the current status as IGNORED; neither bumps the version. Unknown
// references are kept in the unmatched store. Only an error means the event
// was not durably recorded.
func (e *Engine) Apply(ctx context.Context, ev *models.NormalizedEvent) (*ApplyResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	unlock, err := e.locker.Lock(ctx, transactionLockKey(ev.GatewayKind, ev.GatewayReference))
	if err != nil {
		return nil, internalError("failed to acquire transaction lock", err)
	}
	defer unlock()

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		result, err := e.applyOnce(ctx, ev)
		if errors.Is(err, models.ErrVersionConflict) {
			e.logger.Debug("version conflict, retrying apply",
				"gateway_reference", ev.GatewayReference,
				"dedup_key", ev.DedupKey,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.metrics.EventHandled(ev.GatewayKind.Slug(), string(result.Disposition))
		return result, nil
	}

	e.logger.Error("apply gave up after repeated version conflicts",
		"gateway_reference", ev.GatewayReference,
		"dedup_key", ev.DedupKey,
		"attempts", e.maxRetries,
	)
	return nil, &ServiceError{
		Code:    ErrCodeConcurrencyConflict,
		Message: fmt.Sprintf("transaction %s kept changing while applying %s", ev.GatewayReference, ev.DedupKey),
		Err:     models.ErrVersionConflict,
	}
}

func (e *Engine) applyOnce(ctx context.Context, ev *models.NormalizedEvent) (*ApplyResult, error) {
	txn, err := e.repo.FindByReference(ctx, ev.GatewayKind, ev.GatewayReference)
	if errors.Is(err, models.ErrNotFound) {
		return e.recordUnmatched(ctx, ev)
	}
	if err != nil {
		return nil, internalError("failed to load transaction", err)
	}

	if existing := txn.FindEvent(ev.DedupKey); existing != nil {
		return &ApplyResult{Transaction: txn, Event: existing, Disposition: models.DispositionDuplicate}, nil
	}

	event := e.rawEvent(ev, txn.Status)
	next, err := models.NextStatus(txn.GatewayKind, txn.Status, ev.Outcome)
	switch {
	case err == nil:
		return e.transition(ctx, txn, next, ev, event)
	case errors.Is(err, models.ErrTerminalState):
		event.Disposition = models.DispositionStale
		e.logger.Info("event targets terminal transaction",
			"gateway_reference", txn.GatewayReference,
			"status", txn.Status,
			"outcome", ev.Outcome,
			"dedup_key", ev.DedupKey,
		)
	default:
		event.Disposition = models.DispositionIgnored
		e.logger.Info("event has no transition from current status",
			"gateway_reference", txn.GatewayReference,
			"status", txn.Status,
			"outcome", ev.Outcome,
			"dedup_key", ev.DedupKey,
		)
	}

	appended, err := e.repo.AppendEvent(ctx, txn.ID, event)
	if err != nil {
		return nil, internalError("failed to record event", err)
	}
	if !appended {
		return e.duplicate(ctx, txn.ID, ev.DedupKey)
	}
	event.Seq = len(txn.RawEvents) + 1
	txn.RawEvents = append(txn.RawEvents, event)
	return &ApplyResult{Transaction: txn, Event: &event, Disposition: event.Disposition}, nil
}

func (e *Engine) transition(
	ctx context.Context,
	txn *models.Transaction,
	next models.TransactionStatus,
	ev *models.NormalizedEvent,
	event models.RawEvent,
) (*ApplyResult, error) {
	updated := txn.Clone()
	updated.Status = next
	if ev.SecondaryReference != "" {
		updated.SecondaryReference = ev.SecondaryReference
	}
	switch ev.Outcome {
	case models.OutcomeSuccess:
		if ev.ReceiptDetails != "" {
			updated.Receipt = ev.ReceiptDetails
		}
	case models.OutcomeFailure:
		updated.FailureReason = ev.Reason()
	}

	event.Disposition = models.DispositionApplied
	event.ToStatus = next

	err := e.repo.ApplyTransition(ctx, updated, txn.Version, event)
	switch {
	case errors.Is(err, models.ErrVersionConflict):
		return nil, err
	case errors.Is(err, models.ErrDuplicateEvent):
		return e.duplicate(ctx, txn.ID, ev.DedupKey)
	case err != nil:
		return nil, internalError("failed to apply transition", err)
	}

	applied := updated.RawEvents[len(updated.RawEvents)-1]
	e.logger.Info("transaction status changed",
		"transaction_id", updated.ID,
		"gateway_reference", updated.GatewayReference,
		"from", txn.Status,
		"to", next,
		"source", ev.Source,
		"dedup_key", ev.DedupKey,
	)
	e.publish(ctx, updated, applied)

	return &ApplyResult{Transaction: updated, Event: &applied, Disposition: models.DispositionApplied}, nil
}

// duplicate reloads the transaction after another writer recorded the same dedup key first
func (e *Engine) duplicate(ctx context.Context, id uuid.UUID, dedupKey string) (*ApplyResult, error) {
	txn, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internalError("failed to reload transaction", err)
	}
	return &ApplyResult{Transaction: txn, Event: txn.FindEvent(dedupKey), Disposition: models.DispositionDuplicate}, nil
}

func (e *Engine) recordUnmatched(ctx context.Context, ev *models.NormalizedEvent) (*ApplyResult, error) {
	err := e.repo.RecordUnmatched(ctx, &models.UnmatchedEvent{
		ReceivedAt:       e.receivedAt(ev),
		Payload:          ev.Payload,
		GatewayKind:      ev.GatewayKind,
		DedupKey:         ev.DedupKey,
		GatewayReference: ev.GatewayReference,
		Outcome:          ev.Outcome,
	})
	if err != nil {
		return nil, internalError("failed to record unmatched event", err)
	}

	e.logger.Warn("event references unknown transaction",
		"gateway", ev.GatewayKind,
		"gateway_reference", ev.GatewayReference,
		"outcome", ev.Outcome,
		"dedup_key", ev.DedupKey,
	)
	return &ApplyResult{Disposition: models.DispositionUnknownReference}, nil
}

func (e *Engine) rawEvent(ev *models.NormalizedEvent, from models.TransactionStatus) models.RawEvent {
	event := models.RawEvent{
		ReceivedAt:         e.receivedAt(ev),
		Payload:            ev.Payload,
		DedupKey:           ev.DedupKey,
		Source:             ev.Source,
		Outcome:            ev.Outcome,
		FromStatus:         from,
		ToStatus:           from,
		Receipt:            ev.ReceiptDetails,
		SecondaryReference: ev.SecondaryReference,
	}
	if ev.Outcome == models.OutcomeFailure {
		event.Reason = ev.Reason()
	}
	if len(event.Payload) > 0 && !json.Valid(event.Payload) {
		quoted, _ := json.Marshal(string(event.Payload)) //nolint:errcheck // marshalling a string cannot fail
		event.Payload = quoted
	}
	return event
}

func (e *Engine) receivedAt(ev *models.NormalizedEvent) time.Time {
	if ev.ReceivedAt.IsZero() {
		return e.now().UTC()
	}
	return ev.ReceivedAt.UTC()
}

func (e *Engine) publish(ctx context.Context, txn *models.Transaction, event models.RawEvent) {
	err := e.publisher.PublishStatusChanged(ctx, events.NewStatusChanged(txn, event))
	e.metrics.StatusEventPublished(err == nil)
	if err != nil {
		e.logger.Warn("failed to publish status change",
			"transaction_id", txn.ID,
			"to", event.ToStatus,
			"error", err,
		)
	}
}

// Get returns the transaction a gateway knows by reference
func (e *Engine) Get(ctx context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error) {
	txn, err := e.repo.FindByReference(ctx, kind, reference)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound(reference)
	}
	if err != nil {
		return nil, internalError("failed to load transaction", err)
	}
	return txn, nil
}

// GetByID returns a transaction by its local id
func (e *Engine) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := e.repo.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound(id.String())
	}
	if err != nil {
		return nil, internalError("failed to load transaction", err)
	}
	return txn, nil
}
