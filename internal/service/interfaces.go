package service

import (
	"context"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
)

// HealthChecker validates system health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Initiator starts payment attempts
type Initiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
}

// Reconciler applies gateway events and serves the ledger read model
type Reconciler interface {
	Apply(ctx context.Context, ev *models.NormalizedEvent) (*ApplyResult, error)
	Get(ctx context.Context, kind models.GatewayKind, reference string) (*models.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// Capturer handles the approval and capture phase of order payments
type Capturer interface {
	ConfirmApproval(ctx context.Context, reference string) (*ApplyResult, error)
	Capture(ctx context.Context, reference string) (*CaptureResult, error)
}

// Ensure concrete types implement interfaces
var (
	_ Initiator  = (*InitiationService)(nil)
	_ Reconciler = (*Engine)(nil)
	_ Capturer   = (*CaptureOrchestrator)(nil)
)
