// Package handlers implements the HTTP surface of the reconciler.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/callback"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
)

// CallbackIngestor processes inbound gateway notifications
type CallbackIngestor interface {
	Ingest(ctx context.Context, kind models.GatewayKind, n *gateway.Notification) callback.Ack
}

// Handler serves the payment, callback, and health endpoints
type Handler struct {
	initiator     service.Initiator
	reconciler    service.Reconciler
	capturer      service.Capturer
	ingestor      CallbackIngestor
	healthChecker service.HealthChecker
	logger        *slog.Logger
	now           func() time.Time
}

// NewHandler creates a new Handler with injected service dependencies.
func NewHandler(
	initiator service.Initiator,
	reconciler service.Reconciler,
	capturer service.Capturer,
	ingestor CallbackIngestor,
	healthChecker service.HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		initiator:     initiator,
		reconciler:    reconciler,
		capturer:      capturer,
		ingestor:      ingestor,
		healthChecker: healthChecker,
		logger:        logger,
		now:           time.Now,
	}
}
