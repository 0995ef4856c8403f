package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayKind identifies which external payment provider owns a transaction
type GatewayKind string

const (
	GatewayKindPushPayment  GatewayKind = "PUSH_PAYMENT"
	GatewayKindOrderCapture GatewayKind = "ORDER_CAPTURE"
)

// Valid reports whether k is a known gateway kind
func (k GatewayKind) Valid() bool {
	return k == GatewayKindPushPayment || k == GatewayKindOrderCapture
}

// Slug returns the URL form of the gateway kind (push-payment, order-capture)
func (k GatewayKind) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", "-")
}

// ParseGatewayKind accepts either the stored form (PUSH_PAYMENT) or the URL slug (push-payment)
func ParseGatewayKind(s string) (GatewayKind, error) {
	kind := GatewayKind(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown gateway kind %q", s)
	}
	return kind, nil
}

// TransactionStatus represents the lifecycle state of a payment transaction
type TransactionStatus string

const (
	TransactionStatusCreated        TransactionStatus = "CREATED"
	TransactionStatusPending        TransactionStatus = "PENDING"
	TransactionStatusApprovedByUser TransactionStatus = "APPROVED_BY_USER"
	TransactionStatusCompleted      TransactionStatus = "COMPLETED"
	TransactionStatusFailed         TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is permitted
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Transaction is the ledger record for a single payment attempt against a gateway
type Transaction struct {
	CreatedAt          time.Time         `db:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at"`
	Metadata           map[string]any    `db:"metadata"`
	Amount             decimal.Decimal   `db:"amount"`
	GatewayKind        GatewayKind       `db:"gateway_kind"`
	GatewayReference   string            `db:"gateway_reference"`
	SecondaryReference string            `db:"secondary_reference"`
	Receipt            string            `db:"receipt"`
	FailureReason      string            `db:"failure_reason"`
	UserRef            string            `db:"user_ref"`
	Currency           string            `db:"currency"`
	Status             TransactionStatus `db:"status"`
	RawEvents          []RawEvent        `db:"-"`
	Version            int64             `db:"version"`
	ID                 uuid.UUID         `db:"id"`
}

// FindEvent returns the recorded event carrying dedupKey, if any
func (t *Transaction) FindEvent(dedupKey string) *RawEvent {
	for i := range t.RawEvents {
		if t.RawEvents[i].DedupKey == dedupKey {
			return &t.RawEvents[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can stage a mutation without touching the stored value
func (t *Transaction) Clone() *Transaction {
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	if t.RawEvents != nil {
		clone.RawEvents = make([]RawEvent, len(t.RawEvents))
		copy(clone.RawEvents, t.RawEvents)
	}
	return &clone
}

// MetadataString returns a string metadata value or "" when absent
func (t *Transaction) MetadataString(key string) string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// Metadata keys
const (
	MetadataPayer             = "payer"
	MetadataApprovalURL       = "approval_url"
	MetadataMerchantRequestID = "merchant_request_id"
)

// IdempotencyKey tracks processed API requests so retried client calls replay the first response
type IdempotencyKey struct {
	CreatedAt      time.Time `db:"created_at"`
	Key            string    `db:"key"`
	RequestPath    string    `db:"request_path"`
	ResponseBody   string    `db:"response_body"`
	ResponseStatus int       `db:"response_status"`
}

// UnmatchedEvent is a verified notification whose gateway reference matched no transaction
type UnmatchedEvent struct {
	ReceivedAt       time.Time       `db:"received_at"`
	Payload          json.RawMessage `db:"payload"`
	GatewayKind      GatewayKind     `db:"gateway_kind"`
	DedupKey         string          `db:"dedup_key"`
	GatewayReference string          `db:"gateway_reference"`
	Outcome          Outcome         `db:"outcome"`
}
