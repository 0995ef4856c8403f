package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/shopspring/decimal"
)

// InitiateRequest asks a gateway to start a payment. Timeout bounds the
// gateway call; zero uses the service default.
type InitiateRequest struct {
	Amount          decimal.Decimal
	UserRef         string
	Kind            models.GatewayKind
	Currency        string
	PayerDescriptor string
	Description     string
	Timeout         time.Duration
}

// InitiateResult is a freshly recorded transaction. ApprovalURL is set for
// gateways that need the payer to approve on the provider's site.
type InitiateResult struct {
	Transaction *models.Transaction
	ApprovalURL string
}

// InitiationService starts payments and records them once a gateway reference exists
type InitiationService struct {
	repo           repository.TransactionRepository
	adapters       map[models.GatewayKind]gateway.Adapter
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
	defaultTimeout time.Duration
}

// NewInitiationService creates an InitiationService over the given adapters
func NewInitiationService(
	repo repository.TransactionRepository,
	adapters []gateway.Adapter,
	m *metrics.Metrics,
	logger *slog.Logger,
	defaultTimeout time.Duration,
) *InitiationService {
	byKind := make(map[models.GatewayKind]gateway.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	if m == nil {
		m = metrics.New()
	}
	return &InitiationService{
		repo:           repo,
		adapters:       byKind,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
		defaultTimeout: defaultTimeout,
	}
}

// Initiate calls the gateway and records the transaction.
//
// A transport failure or timeout records nothing. A rejection records a FAILED
// transaction only when the gateway had already assigned a reference.
func (s *InitiationService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ValidateInitiation(req.Kind, req.Amount, req.Currency, req.PayerDescriptor); err != nil {
		return nil, invalidRequest(err)
	}

	adapter, ok := s.adapters[req.Kind]
	if !ok {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidRequest,
			Message: "gateway " + req.Kind.Slug() + " is not configured",
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	initiation, err := adapter.Initiate(callCtx, gateway.InitiateRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		PayerDescriptor: req.PayerDescriptor,
		Description:     req.Description,
	})
	if err != nil {
		return nil, s.handleInitiateError(ctx, req, err)
	}

	txn := s.newTransaction(req, initiation.Reference, models.InitialStatus(req.Kind))
	txn.Metadata = initiation.Metadata
	txn.RawEvents = []models.RawEvent{{
		ReceivedAt:  s.now().UTC(),
		Payload:     initiation.Payload,
		DedupKey:    initiationDedupKey(initiation.Reference),
		Source:      models.SourceInitiation,
		Outcome:     models.OutcomeInitiated,
		Disposition: models.DispositionInitiated,
		ToStatus:    txn.Status,
	}}

	// The gateway now holds a live payment under this reference; record it
	// even if the caller has gone away.
	if err := s.repo.Create(context.WithoutCancel(ctx), txn); err != nil {
		s.metrics.InitiationFinished(req.Kind.Slug(), "error")
		return nil, internalError("failed to record transaction", err)
	}

	s.metrics.InitiationFinished(req.Kind.Slug(), "initiated")
	s.logger.Info("payment initiated",
		"transaction_id", txn.ID,
		"gateway", req.Kind,
		"gateway_reference", txn.GatewayReference,
		"status", txn.Status,
	)

	return &InitiateResult{Transaction: txn, ApprovalURL: initiation.ApprovalURL}, nil
}

func (s *InitiationService) handleInitiateError(ctx context.Context, req InitiateRequest, err error) error {
	var rejected *gateway.RejectedError
	if !errors.As(err, &rejected) {
		s.metrics.InitiationFinished(req.Kind.Slug(), "transport_error")
		s.logger.Warn("payment initiation did not complete",
			"gateway", req.Kind,
			"error", err,
		)
		return &ServiceError{
			Code:    ErrCodeInitiationTransportError,
			Message: "payment gateway did not answer, retry the payment",
			Err:     err,
		}
	}

	s.metrics.InitiationFinished(req.Kind.Slug(), "rejected")
	s.logger.Warn("payment initiation rejected",
		"gateway", req.Kind,
		"gateway_reference", rejected.Reference,
		"reason", rejected.Reason,
	)

	if rejected.Reference != "" {
		txn := s.newTransaction(req, rejected.Reference, models.TransactionStatusFailed)
		txn.FailureReason = rejected.Reason
		txn.RawEvents = []models.RawEvent{{
			ReceivedAt:  s.now().UTC(),
			Payload:     rejected.Payload,
			DedupKey:    initiationDedupKey(rejected.Reference),
			Source:      models.SourceInitiation,
			Outcome:     models.OutcomeFailure,
			Disposition: models.DispositionRejected,
			ToStatus:    models.TransactionStatusFailed,
			Reason:      rejected.Reason,
		}}
		if createErr := s.repo.Create(context.WithoutCancel(ctx), txn); createErr != nil {
			s.logger.Error("failed to record rejected transaction",
				"gateway_reference", rejected.Reference,
				"error", createErr,
			)
		}
	}

	return &ServiceError{
		Code:    ErrCodeInitiationRejected,
		Message: "payment was rejected: " + rejected.Reason,
		Err:     err,
	}
}

func (s *InitiationService) newTransaction(req InitiateRequest, reference string, status models.TransactionStatus) *models.Transaction {
	return &models.Transaction{
		GatewayKind:      req.Kind,
		GatewayReference: reference,
		Amount:           req.Amount,
		Currency:         req.Currency,
		UserRef:          req.UserRef,
		Status:           status,
	}
}

func initiationDedupKey(reference string) string {
	return "initiate:" + reference
}
