// Package gateway defines the contract every external payment provider adapter satisfies.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// ErrUnreachable marks network failures, timeouts, and provider outages. The
// outcome of the call is unknown, so nothing may be recorded for it.
var ErrUnreachable = errors.New("gateway unreachable")

// RejectedError is an explicit refusal from the provider. Reference is set
// when the provider assigned one before refusing.
type RejectedError struct {
	Payload   json.RawMessage
	Reason    string
	Reference string
}

func (e *RejectedError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("gateway rejected %s: %s", e.Reference, e.Reason)
	}
	return "gateway rejected: " + e.Reason
}

// Unreachable wraps err so that errors.Is(result, ErrUnreachable) holds
func Unreachable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
}

// InitiateRequest is the provider-neutral description of a payment attempt
type InitiateRequest struct {
	Amount          decimal.Decimal
	Currency        string
	PayerDescriptor string
	Description     string
}

// Initiation is what a provider returned for an accepted attempt
type Initiation struct {
	Metadata    map[string]any
	Payload     json.RawMessage
	Reference   string
	ApprovalURL string
}

// CaptureResult is a completed second-phase capture
type CaptureResult struct {
	Payload   json.RawMessage
	CaptureID string
	Status    string
}

// Adapter starts payment attempts against one provider
type Adapter interface {
	Kind() models.GatewayKind
	Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error)
}

// Capturer finalizes an approved order. requestID is forwarded as the
// provider's idempotency key so a retried capture is not charged twice.
type Capturer interface {
	Capture(ctx context.Context, reference, requestID string) (*CaptureResult, error)
}
