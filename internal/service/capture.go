package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/lock"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

// CaptureResult is the outcome of a capture request. Captured reports whether
// this call reached the gateway; Conflict reports that the transaction was not
// awaiting capture and its stored state was returned instead.
type CaptureResult struct {
	Transaction *models.Transaction
	Captured    bool
	Conflict    bool
}

// CaptureOrchestrator drives the second phase of order-capture payments
type CaptureOrchestrator struct {
	engine   *Engine
	capturer gateway.Capturer
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewCaptureOrchestrator creates a CaptureOrchestrator. locker should be the
// same kind of lock the engine uses so captures are serialized across replicas.
func NewCaptureOrchestrator(
	engine *Engine,
	capturer gateway.Capturer,
	locker lock.Locker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CaptureOrchestrator {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if m == nil {
		m = metrics.New()
	}
	return &CaptureOrchestrator{
		engine:   engine,
		capturer: capturer,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ConfirmApproval records that the payer came back from the approval page.
// It is idempotent per order.
func (o *CaptureOrchestrator) ConfirmApproval(ctx context.Context, reference string) (*ApplyResult, error) {
	payload, _ := json.Marshal(map[string]string{"order_id": reference}) //nolint:errcheck // static shape
	result, err := o.engine.Apply(ctx, &models.NormalizedEvent{
		ReceivedAt:       o.now().UTC(),
		Payload:          payload,
		GatewayKind:      models.GatewayKindOrderCapture,
		DedupKey:         "client-return:" + reference,
		GatewayReference: reference,
		Outcome:          models.OutcomeApproved,
		Source:           models.SourceClientReturn,
	})
	if err != nil {
		return nil, err
	}
	if result.Disposition == models.DispositionUnknownReference {
		return nil, notFound(reference)
	}
	return result, nil
}

// Capture finalizes an approved order. It calls the gateway only while the
// transaction is APPROVED_BY_USER; any other status returns the stored
// transaction with Conflict set. The transaction id is the gateway
// idempotency key, so a retried capture cannot charge twice.
func (o *CaptureOrchestrator) Capture(ctx context.Context, reference string) (*CaptureResult, error) {
	unlock, err := o.locker.Lock(ctx, "capture:"+reference)
	if err != nil {
		return nil, internalError("failed to acquire capture lock", err)
	}
	defer unlock()

	txn, err := o.engine.Get(ctx, models.GatewayKindOrderCapture, reference)
	if err != nil {
		return nil, err
	}

	if txn.Status != models.TransactionStatusApprovedByUser {
		o.metrics.CaptureFinished("conflict")
		o.logger.Info("capture skipped",
			"gateway_reference", reference,
			"status", txn.Status,
		)
		return &CaptureResult{Transaction: txn, Conflict: true}, nil
	}

	captured, err := o.capturer.Capture(ctx, reference, txn.ID.String())
	if err != nil {
		var rejected *gateway.RejectedError
		if errors.As(err, &rejected) {
			return o.recordDecline(ctx, reference, rejected)
		}

		o.metrics.CaptureFinished("transport_error")
		o.logger.Warn("capture did not complete",
			"gateway_reference", reference,
			"error", err,
		)
		return nil, &ServiceError{
			Code:    ErrCodeCaptureTransportError,
			Message: "payment gateway did not answer the capture, retry later",
			Err:     err,
		}
	}

	// The money has moved; the result is recorded regardless of the caller.
	result, err := o.engine.Apply(context.WithoutCancel(ctx), &models.NormalizedEvent{
		ReceivedAt:         o.now().UTC(),
		Payload:            captured.Payload,
		GatewayKind:        models.GatewayKindOrderCapture,
		DedupKey:           "capture:" + captured.CaptureID,
		GatewayReference:   reference,
		Outcome:            models.OutcomeSuccess,
		Source:             models.SourceCapture,
		ReceiptDetails:     captured.CaptureID,
		SecondaryReference: captured.CaptureID,
	})
	if err != nil {
		o.logger.Error("capture succeeded at gateway but was not recorded",
			"gateway_reference", reference,
			"capture_id", captured.CaptureID,
			"error", err,
		)
		return nil, err
	}

	o.metrics.CaptureFinished("captured")
	o.logger.Info("order captured",
		"gateway_reference", reference,
		"capture_id", captured.CaptureID,
		"capture_status", captured.Status,
		"disposition", result.Disposition,
	)
	return &CaptureResult{Transaction: result.Transaction, Captured: true}, nil
}

func (o *CaptureOrchestrator) recordDecline(ctx context.Context, reference string, rejected *gateway.RejectedError) (*CaptureResult, error) {
	result, err := o.engine.Apply(context.WithoutCancel(ctx), &models.NormalizedEvent{
		ReceivedAt:       o.now().UTC(),
		Payload:          rejected.Payload,
		GatewayKind:      models.GatewayKindOrderCapture,
		DedupKey:         "capture-declined:" + reference,
		GatewayReference: reference,
		Outcome:          models.OutcomeFailure,
		Source:           models.SourceCapture,
		ReasonMessage:    rejected.Reason,
	})
	if err != nil {
		return nil, err
	}

	o.metrics.CaptureFinished("declined")
	o.logger.Warn("capture declined",
		"gateway_reference", reference,
		"reason", rejected.Reason,
	)
	return &CaptureResult{Transaction: result.Transaction, Captured: true}, nil
}
