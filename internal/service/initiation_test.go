package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	gatewaymocks "github.com/benx421/payment-gateway/reconciler/internal/gateway/mocks"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, kind models.GatewayKind) *gatewaymocks.MockAdapter {
	adapter := gatewaymocks.NewMockAdapter(t)
	adapter.On("Kind").Return(kind)
	return adapter
}

func pushRequest() InitiateRequest {
	return InitiateRequest{
		UserRef:         "user-42",
		Kind:            models.GatewayKindPushPayment,
		Amount:          decimal.NewFromInt(150),
		Currency:        "KES",
		PayerDescriptor: "254712345678",
	}
}

func TestInitiationService_PushPayment(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	adapter := newAdapter(t, models.GatewayKindPushPayment)
	svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

	adapter.On("Initiate", mock.Anything, gateway.InitiateRequest{
		Amount:          decimal.NewFromInt(150),
		Currency:        "KES",
		PayerDescriptor: "254712345678",
	}).Return(&gateway.Initiation{
		Reference: "R1",
		Payload:   json.RawMessage(`{"CheckoutRequestID":"R1","ResponseCode":"0"}`),
		Metadata:  map[string]any{models.MetadataPayer: "254712345678"},
	}, nil)

	result, err := svc.Initiate(context.Background(), pushRequest())
	require.NoError(t, err)
	assert.Empty(t, result.ApprovalURL)

	txn := result.Transaction
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, "R1", txn.GatewayReference)
	assert.Equal(t, "user-42", txn.UserRef)
	assert.Equal(t, int64(1), txn.Version)

	stored, err := repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "R1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, stored.ID)
	assert.Equal(t, "254712345678", stored.MetadataString(models.MetadataPayer))
	require.Len(t, stored.RawEvents, 1)
	assert.Equal(t, models.DispositionInitiated, stored.RawEvents[0].Disposition)
	assert.Equal(t, models.SourceInitiation, stored.RawEvents[0].Source)
	assert.Equal(t, "initiate:R1", stored.RawEvents[0].DedupKey)
}

func TestInitiationService_OrderCapture(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	adapter := newAdapter(t, models.GatewayKindOrderCapture)
	svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

	adapter.On("Initiate", mock.Anything, mock.AnythingOfType("gateway.InitiateRequest")).Return(&gateway.Initiation{
		Reference:   "R2",
		ApprovalURL: "https://paypal.example/approve?token=R2",
		Payload:     json.RawMessage(`{"id":"R2"}`),
	}, nil)

	result, err := svc.Initiate(context.Background(), InitiateRequest{
		Kind:     models.GatewayKindOrderCapture,
		Amount:   decimal.RequireFromString("19.99"),
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCreated, result.Transaction.Status)
	assert.Equal(t, "https://paypal.example/approve?token=R2", result.ApprovalURL)
}

func TestInitiationService_NoGhostTransactions(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "gateway unreachable",
			err:      gateway.Unreachable("stk push", errors.New("connection refused")),
			wantCode: ErrCodeInitiationTransportError,
		},
		{
			name:     "rejected before a reference was assigned",
			err:      &gateway.RejectedError{Reason: "Invalid PhoneNumber"},
			wantCode: ErrCodeInitiationRejected,
		},
		{
			name:     "unexpected gateway error",
			err:      errors.New("token endpoint returned HTTP 400"),
			wantCode: ErrCodeInitiationTransportError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryTransactionRepository()
			adapter := newAdapter(t, models.GatewayKindPushPayment)
			svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

			adapter.On("Initiate", mock.Anything, mock.Anything).Return(nil, tt.err)

			result, err := svc.Initiate(context.Background(), pushRequest())
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantCode, serviceErrorCode(t, err))

			_, findErr := repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "")
			assert.ErrorIs(t, findErr, models.ErrNotFound)
		})
	}
}

func TestInitiationService_Timeout(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	adapter := newAdapter(t, models.GatewayKindPushPayment)
	svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Minute)

	adapter.On("Initiate", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ gateway.InitiateRequest) (*gateway.Initiation, error) {
			<-ctx.Done()
			return nil, gateway.Unreachable("stk push", ctx.Err())
		})

	req := pushRequest()
	req.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := svc.Initiate(context.Background(), req)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "caller timeout bounds the gateway call")
	assert.Equal(t, ErrCodeInitiationTransportError, serviceErrorCode(t, err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInitiationService_RejectedWithReference(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	adapter := newAdapter(t, models.GatewayKindPushPayment)
	svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

	adapter.On("Initiate", mock.Anything, mock.Anything).Return(nil, &gateway.RejectedError{
		Reference: "ws_CO_rejected",
		Reason:    "DS timeout user cannot be reached",
		Payload:   json.RawMessage(`{"ResponseCode":"1"}`),
	})

	_, err := svc.Initiate(context.Background(), pushRequest())
	require.Error(t, err)
	assert.Equal(t, ErrCodeInitiationRejected, serviceErrorCode(t, err))

	stored, err := repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "ws_CO_rejected")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)
	assert.Equal(t, "DS timeout user cannot be reached", stored.FailureReason)
	require.Len(t, stored.RawEvents, 1)
	assert.Equal(t, models.DispositionRejected, stored.RawEvents[0].Disposition)
	assert.Equal(t, models.OutcomeFailure, stored.RawEvents[0].Outcome)
}

func TestInitiationService_RecordsReferenceAfterCallerCancels(t *testing.T) {
	tests := []struct {
		name       string
		initiation *gateway.Initiation
		initErr    error
		wantCode   string
		wantStatus models.TransactionStatus
	}{
		{
			name:       "accepted",
			initiation: &gateway.Initiation{Reference: "R-LIVE", Payload: json.RawMessage(`{"ResponseCode":"0"}`)},
			wantStatus: models.TransactionStatusPending,
		},
		{
			name:       "rejected with reference",
			initErr:    &gateway.RejectedError{Reference: "R-LIVE", Reason: "insufficient funds"},
			wantCode:   ErrCodeInitiationRejected,
			wantStatus: models.TransactionStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := contextRepository{repository.NewMemoryTransactionRepository()}
			adapter := newAdapter(t, models.GatewayKindPushPayment)
			svc := NewInitiationService(repo, []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			adapter.On("Initiate", mock.Anything, mock.Anything).
				Run(func(mock.Arguments) { cancel() }).
				Return(tt.initiation, tt.initErr)

			_, err := svc.Initiate(ctx, pushRequest())
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantCode, serviceErrorCode(t, err))
			}

			stored, err := repo.FindByReference(context.Background(), models.GatewayKindPushPayment, "R-LIVE")
			require.NoError(t, err, "a gateway-issued reference must reach the ledger")
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestInitiationService_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InitiateRequest)
	}{
		{"zero amount", func(r *InitiateRequest) { r.Amount = decimal.Zero }},
		{"fractional shillings", func(r *InitiateRequest) { r.Amount = decimal.RequireFromString("10.50") }},
		{"wrong currency", func(r *InitiateRequest) { r.Currency = "USD" }},
		{"bad phone", func(r *InitiateRequest) { r.PayerDescriptor = "0712345678" }},
		{"unknown gateway", func(r *InitiateRequest) { r.Kind = "CARD" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newAdapter(t, models.GatewayKindPushPayment)
			svc := NewInitiationService(repository.NewMemoryTransactionRepository(), []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

			req := pushRequest()
			tt.mutate(&req)

			_, err := svc.Initiate(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidRequest, serviceErrorCode(t, err))
			adapter.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
		})
	}
}

func TestInitiationService_GatewayNotConfigured(t *testing.T) {
	adapter := newAdapter(t, models.GatewayKindPushPayment)
	svc := NewInitiationService(repository.NewMemoryTransactionRepository(), []gateway.Adapter{adapter}, nil, testLogger(), time.Second)

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		Kind:     models.GatewayKindOrderCapture,
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
	})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidRequest, serviceErrorCode(t, err))
}
