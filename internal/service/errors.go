package service

import "fmt"

// ServiceError represents a business logic error with a code
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInvalidRequest           = "invalid_request"
	ErrCodeInitiationTransportError = "initiation_transport_error"
	ErrCodeInitiationRejected       = "initiation_rejected"
	ErrCodeCaptureTransportError    = "capture_transport_error"
	ErrCodeTransactionNotFound      = "transaction_not_found"
	ErrCodeCaptureNotSupported      = "capture_not_supported"
	ErrCodeConcurrencyConflict      = "concurrency_conflict"
	ErrCodeInternalError            = "internal_error"
)

func invalidRequest(err error) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidRequest, Message: err.Error()}
}

func internalError(message string, err error) *ServiceError {
	return &ServiceError{Code: ErrCodeInternalError, Message: message, Err: err}
}

func notFound(reference string) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction %s not found", reference),
	}
}
