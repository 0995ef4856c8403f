package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/events"
	"github.com/benx421/payment-gateway/reconciler/internal/lock"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	err    error
	events []events.StatusChanged
	mu     sync.Mutex
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, event events.StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []events.StatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.StatusChanged(nil), p.events...)
}

type engineFixture struct {
	repo      repository.TransactionRepository
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	engine    *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		repo:      repository.NewMemoryTransactionRepository(),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(),
	}
	f.engine = NewEngine(EngineConfig{
		Repo:       f.repo,
		Locker:     lock.NewKeyedMutex(),
		Publisher:  f.publisher,
		Metrics:    f.metrics,
		Logger:     testLogger(),
		MaxRetries: 3,
	})
	return f
}

// seed records a transaction as if initiation had just succeeded
func (f *engineFixture) seed(t *testing.T, kind models.GatewayKind, reference string) *models.Transaction {
	t.Helper()

	status := models.InitialStatus(kind)
	txn := &models.Transaction{
		GatewayKind:      kind,
		GatewayReference: reference,
		Amount:           decimal.NewFromInt(100),
		Currency:         "KES",
		Status:           status,
		RawEvents: []models.RawEvent{{
			ReceivedAt:  time.Now().UTC(),
			DedupKey:    initiationDedupKey(reference),
			Source:      models.SourceInitiation,
			Outcome:     models.OutcomeInitiated,
			Disposition: models.DispositionInitiated,
			ToStatus:    status,
		}},
	}
	require.NoError(t, f.repo.Create(context.Background(), txn))
	return txn
}

func (f *engineFixture) load(t *testing.T, kind models.GatewayKind, reference string) *models.Transaction {
	t.Helper()

	txn, err := f.repo.FindByReference(context.Background(), kind, reference)
	require.NoError(t, err)
	return txn
}

func pushEvent(reference, dedupKey string, outcome models.Outcome) *models.NormalizedEvent {
	ev := &models.NormalizedEvent{
		ReceivedAt:       time.Now().UTC(),
		Payload:          json.RawMessage(`{"ResultCode":0}`),
		GatewayKind:      models.GatewayKindPushPayment,
		DedupKey:         dedupKey,
		GatewayReference: reference,
		Outcome:          outcome,
		Source:           models.SourceCallback,
	}
	switch outcome {
	case models.OutcomeSuccess:
		ev.ReceiptDetails = "RCPT-" + dedupKey
	case models.OutcomeFailure:
		ev.ReasonCode = "1032"
		ev.ReasonMessage = "Request cancelled by user"
	}
	return ev
}

func orderEvent(reference, dedupKey string, outcome models.Outcome) *models.NormalizedEvent {
	ev := pushEvent(reference, dedupKey, outcome)
	ev.GatewayKind = models.GatewayKindOrderCapture
	ev.Source = models.SourceWebhook
	ev.ReceiptDetails = ""
	if outcome == models.OutcomeSuccess {
		ev.SecondaryReference = "CAP-" + dedupKey
	}
	return ev
}

func serviceErrorCode(t *testing.T, err error) string {
	t.Helper()

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "expected ServiceError, got %v", err)
	return svcErr.Code
}

// contextRepository fails every write once ctx is done, as a networked
// ledger would.
type contextRepository struct {
	repository.TransactionRepository
}

func (r contextRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TransactionRepository.Create(ctx, txn)
}

func (r contextRepository) ApplyTransition(ctx context.Context, txn *models.Transaction, expectedVersion int64, event models.RawEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TransactionRepository.ApplyTransition(ctx, txn, expectedVersion, event)
}

func (r contextRepository) AppendEvent(ctx context.Context, id uuid.UUID, event models.RawEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.TransactionRepository.AppendEvent(ctx, id, event)
}
