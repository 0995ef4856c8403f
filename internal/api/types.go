package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorCode is the machine-readable error field of every error body
type ErrorCode string

const (
	ErrorCodeInvalidRequest           ErrorCode = "invalid_request"
	ErrorCodeUnauthorized             ErrorCode = "unauthorized"
	ErrorCodeInitiationTransportError ErrorCode = "initiation_transport_error"
	ErrorCodeInitiationRejected       ErrorCode = "initiation_rejected"
	ErrorCodeCaptureTransportError    ErrorCode = "capture_transport_error"
	ErrorCodeTransactionNotFound      ErrorCode = "transaction_not_found"
	ErrorCodeCaptureNotSupported      ErrorCode = "capture_not_supported"
	ErrorCodeConcurrencyConflict      ErrorCode = "concurrency_conflict"
	ErrorCodeInternalError            ErrorCode = "internal_error"
)

// Error is the body of every non-2xx API response
type Error struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
}

// PushPaymentRequest is the body of POST /api/v1/payments/push-payment
type PushPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PhoneNumber string          `json:"phone_number"`
	Description string          `json:"description,omitempty"`
}

// OrderRequest is the body of POST /api/v1/payments/order-capture
type OrderRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PayerEmail  string          `json:"payer_email,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Transaction is the API view of a ledger transaction
type Transaction struct {
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Amount             decimal.Decimal `json:"amount"`
	Gateway            string          `json:"gateway"`
	GatewayReference   string          `json:"gateway_reference"`
	SecondaryReference string          `json:"secondary_reference,omitempty"`
	Status             string          `json:"status"`
	Currency           string          `json:"currency"`
	Receipt            string          `json:"receipt,omitempty"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	ApprovalURL        string          `json:"approval_url,omitempty"`
	Events             []Event         `json:"events,omitempty"`
	ID                 uuid.UUID       `json:"id"`
}

// Event is the API view of one raw event in a transaction's history
type Event struct {
	ReceivedAt  time.Time `json:"received_at"`
	Source      string    `json:"source"`
	Outcome     string    `json:"outcome"`
	Disposition string    `json:"disposition"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Seq         int       `json:"seq"`
}

// CaptureResponse is the body of a capture call
type CaptureResponse struct {
	Transaction Transaction `json:"transaction"`
	Captured    bool        `json:"captured"`
}

// HealthStatus values
const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}
