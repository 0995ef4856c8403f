package callback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway/mpesa"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway/paypal"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mpesaSuccess = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":150},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`

type recordingArchiver struct {
	err      error
	payloads [][]byte
	mu       sync.Mutex
}

func (a *recordingArchiver) Archive(_ context.Context, _ models.GatewayKind, _ time.Time, payload []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payloads = append(a.payloads, payload)
	return "callbacks/key.json", a.err
}

type verifierFunc func(ctx context.Context, n *gateway.Notification) error

func (f verifierFunc) Verify(ctx context.Context, n *gateway.Notification) error { return f(ctx, n) }

type fixture struct {
	repo     repository.TransactionRepository
	archiver *recordingArchiver
	ingestor *Ingestor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryTransactionRepository()
	engine := service.NewEngine(service.EngineConfig{Repo: repo, Logger: logger})

	verifier, err := mpesa.NewTokenVerifier("s3cret", []string{"196.201.214.0/24"})
	require.NoError(t, err)

	f := &fixture{repo: repo, archiver: &recordingArchiver{}}
	f.ingestor = NewIngestor(engine, f.archiver, nil, logger)
	f.ingestor.Register(models.GatewayKindPushPayment, Source{
		Verifier:     verifier,
		Normalizer:   mpesa.Normalizer{},
		Acknowledger: mpesa.Acknowledger{},
	})
	f.ingestor.Register(models.GatewayKindOrderCapture, Source{
		Verifier:     verifierFunc(func(context.Context, *gateway.Notification) error { return nil }),
		Normalizer:   paypal.Normalizer{},
		Acknowledger: paypal.Acknowledger{},
	})
	return f
}

func (f *fixture) seedPending(t *testing.T, reference string) {
	t.Helper()

	require.NoError(t, f.repo.Create(context.Background(), &models.Transaction{
		GatewayKind:      models.GatewayKindPushPayment,
		GatewayReference: reference,
		Amount:           decimal.NewFromInt(150),
		Currency:         "KES",
		Status:           models.TransactionStatusPending,
		RawEvents:        []models.RawEvent{{DedupKey: "initiate:" + reference, ReceivedAt: time.Now().UTC()}},
	}))
}

func mpesaNotification(payload string) *gateway.Notification {
	return &gateway.Notification{
		ReceivedAt: time.Now().UTC(),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Query:      url.Values{"token": {"s3cret"}},
		Payload:    []byte(payload),
		RemoteAddr: "196.201.214.200:443",
	}
}

func TestIngest_AppliesVerifiedCallback(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "ws_CO_1")

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, mpesaNotification(mpesaSuccess))
	require.NoError(t, ack.Err)
	assert.Equal(t, http.StatusOK, ack.Status)
	assert.Equal(t, models.DispositionApplied, ack.Disposition)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, string(ack.Body))

	txn, err := f.repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "NLJ7RT61SV", txn.Receipt)
	assert.Len(t, f.archiver.payloads, 1)

	redelivered := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, mpesaNotification(mpesaSuccess))
	assert.Equal(t, http.StatusOK, redelivered.Status)
	assert.Equal(t, models.DispositionDuplicate, redelivered.Disposition)
}

func TestIngest_UnknownReferenceIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, mpesaNotification(mpesaSuccess))
	assert.Equal(t, http.StatusOK, ack.Status)
	assert.Equal(t, models.DispositionUnknownReference, ack.Disposition)

	unmatched, err := f.repo.ListUnmatched(context.Background(), models.GatewayKindPushPayment, 0)
	require.NoError(t, err)
	assert.Len(t, unmatched, 1)
}

func TestIngest_RejectsUnauthenticated(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *gateway.Notification)
	}{
		{"wrong token", func(n *gateway.Notification) { n.Query.Set("token", "guess") }},
		{"foreign address", func(n *gateway.Notification) { n.RemoteAddr = "203.0.113.7:5555" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedPending(t, "ws_CO_1")

			n := mpesaNotification(mpesaSuccess)
			tt.mutate(n)

			ack := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, n)
			assert.Equal(t, http.StatusUnauthorized, ack.Status)
			assert.ErrorIs(t, ack.Err, ErrAuthentication)
			assert.JSONEq(t, `{"ResultCode":1,"ResultDesc":"authentication failed"}`, string(ack.Body))

			txn, err := f.repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "ws_CO_1")
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusPending, txn.Status, "unverified callbacks never reach the engine")
			assert.Len(t, txn.RawEvents, 1)
		})
	}
}

func TestIngest_VerifierUnavailable(t *testing.T) {
	f := newFixture(t)
	f.ingestor.Register(models.GatewayKindOrderCapture, Source{
		Verifier: verifierFunc(func(context.Context, *gateway.Notification) error {
			return gateway.Unreachable("verify", errors.New("timeout"))
		}),
		Normalizer:   paypal.Normalizer{},
		Acknowledger: paypal.Acknowledger{},
	})

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindOrderCapture, &gateway.Notification{
		Payload: []byte(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`),
	})
	assert.Equal(t, http.StatusServiceUnavailable, ack.Status)
	assert.NotErrorIs(t, ack.Err, ErrAuthentication)
}

func TestIngest_MalformedPayload(t *testing.T) {
	f := newFixture(t)

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, mpesaNotification(`{"Body":{}}`))
	assert.Equal(t, http.StatusBadRequest, ack.Status)
	assert.ErrorIs(t, ack.Err, gateway.ErrMalformedPayload)
	assert.Len(t, f.archiver.payloads, 1, "malformed payloads are still archived")
}

func TestIngest_UnhandledEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindOrderCapture, &gateway.Notification{
		Payload: []byte(`{"id":"WH-9","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"CAP-1"}}`),
	})
	assert.Equal(t, http.StatusOK, ack.Status)
	assert.NoError(t, ack.Err)
	assert.JSONEq(t, `{"received":true}`, string(ack.Body))
}

func TestIngest_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("bucket missing")
	f.seedPending(t, "ws_CO_1")

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKindPushPayment, mpesaNotification(mpesaSuccess))
	assert.Equal(t, http.StatusOK, ack.Status)
	assert.Equal(t, models.DispositionApplied, ack.Disposition)
}

func TestIngest_UnknownGateway(t *testing.T) {
	f := newFixture(t)

	ack := f.ingestor.Ingest(context.Background(), models.GatewayKind("CARD"), &gateway.Notification{})
	assert.Equal(t, http.StatusNotFound, ack.Status)
	assert.Error(t, ack.Err)
}

func TestIngest_CanceledRequestStillRecorded(t *testing.T) {
	f := newFixture(t)
	f.seedPending(t, "ws_CO_1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := f.ingestor.Ingest(ctx, models.GatewayKindPushPayment, mpesaNotification(mpesaSuccess))
	assert.Equal(t, http.StatusOK, ack.Status)
	assert.Equal(t, models.DispositionApplied, ack.Disposition)
}
