package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Outcome is the gateway-neutral result carried by a notification
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeFailure  Outcome = "FAILURE"
	OutcomeApproved Outcome = "APPROVED"

	// OutcomeInitiated is only written by the initiation path; gateways never report it.
	OutcomeInitiated Outcome = "INITIATED"
)

// EventSource records where an event entered the system
type EventSource string

const (
	SourceInitiation   EventSource = "INITIATION"
	SourceCallback     EventSource = "CALLBACK"
	SourceWebhook      EventSource = "WEBHOOK"
	SourceCapture      EventSource = "CAPTURE"
	SourceClientReturn EventSource = "CLIENT_RETURN"
)

// Disposition records what the engine did with an event
type Disposition string

const (
	DispositionApplied   Disposition = "APPLIED"
	DispositionStale     Disposition = "STALE"
	DispositionIgnored   Disposition = "IGNORED"
	DispositionInitiated Disposition = "INITIATED"
	DispositionRejected  Disposition = "REJECTED"

	// Never persisted on a transaction.
	DispositionDuplicate        Disposition = "DUPLICATE"
	DispositionUnknownReference Disposition = "UNKNOWN_REFERENCE"
)

// RawEvent is one entry of a transaction's append-only audit log
type RawEvent struct {
	ReceivedAt         time.Time         `db:"received_at"`
	Payload            json.RawMessage   `db:"payload"`
	DedupKey           string            `db:"dedup_key"`
	Source             EventSource       `db:"source"`
	Outcome            Outcome           `db:"outcome"`
	Disposition        Disposition       `db:"disposition"`
	FromStatus         TransactionStatus `db:"from_status"`
	ToStatus           TransactionStatus `db:"to_status"`
	Reason             string            `db:"reason"`
	Receipt            string            `db:"receipt"`
	SecondaryReference string            `db:"secondary_reference"`
	Seq                int               `db:"seq"`
}

// NormalizedEvent is a verified gateway notification stripped of provider field names
type NormalizedEvent struct {
	ReceivedAt         time.Time
	Payload            json.RawMessage
	GatewayKind        GatewayKind
	DedupKey           string
	GatewayReference   string
	Outcome            Outcome
	Source             EventSource
	ReceiptDetails     string
	SecondaryReference string
	ReasonCode         string
	ReasonMessage      string
}

// Reason returns the most descriptive failure text available
func (e *NormalizedEvent) Reason() string {
	if e.ReasonMessage != "" {
		return e.ReasonMessage
	}
	return e.ReasonCode
}

// Validate checks the fields every normalizer must populate
func (e *NormalizedEvent) Validate() error {
	var errs []error
	if !e.GatewayKind.Valid() {
		errs = append(errs, errors.New("gateway kind is invalid"))
	}
	if e.DedupKey == "" {
		errs = append(errs, errors.New("dedup key is required"))
	}
	if e.GatewayReference == "" {
		errs = append(errs, errors.New("gateway reference is required"))
	}
	switch e.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeApproved:
	default:
		errs = append(errs, errors.New("outcome must be SUCCESS, FAILURE, or APPROVED"))
	}
	return errors.Join(errs...)
}
