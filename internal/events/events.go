// Package events publishes transaction status changes to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
)

// StatusChanged is emitted after a transition has been committed to the ledger
type StatusChanged struct {
	OccurredAt       time.Time                `json:"occurred_at"`
	TransactionID    uuid.UUID                `json:"transaction_id"`
	GatewayKind      models.GatewayKind       `json:"gateway_kind"`
	GatewayReference string                   `json:"gateway_reference"`
	FromStatus       models.TransactionStatus `json:"from_status"`
	ToStatus         models.TransactionStatus `json:"to_status"`
	DedupKey         string                   `json:"dedup_key"`
	Source           models.EventSource       `json:"source"`
}

// NewStatusChanged builds the event for the latest transition recorded on txn
func NewStatusChanged(txn *models.Transaction, event models.RawEvent) StatusChanged {
	return StatusChanged{
		OccurredAt:       event.ReceivedAt,
		TransactionID:    txn.ID,
		GatewayKind:      txn.GatewayKind,
		GatewayReference: txn.GatewayReference,
		FromStatus:       event.FromStatus,
		ToStatus:         event.ToStatus,
		DedupKey:         event.DedupKey,
		Source:           event.Source,
	}
}

// Publisher delivers status change events
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
	Close()
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

func (NoopPublisher) Close() {}
