package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/benx421/payment-gateway/reconciler/internal/api"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
	"github.com/oapi-codegen/runtime"
)

const (
	maxRequestBody  = 1 << 20
	retryAfterValue = 5
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best effort response writing
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code api.ErrorCode, message string) {
	writeJSON(w, status, api.Error{Error: code, Message: message})
}

// decodeBody reads a JSON request body, rejecting unknown fields and trailing data
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: unexpected data after JSON object")
	}
	return nil
}

// pathGateway binds the {gateway} path parameter
func pathGateway(r *http.Request) (models.GatewayKind, error) {
	var slug string
	if err := bindPath(r, "gateway", &slug); err != nil {
		return "", err
	}
	return models.ParseGatewayKind(slug)
}

// pathReference binds the {gatewayReference} path parameter
func pathReference(r *http.Request) (string, error) {
	var reference string
	if err := bindPath(r, "gatewayReference", &reference); err != nil {
		return "", err
	}
	if reference == "" {
		return "", errors.New("gateway reference is required")
	}
	return reference, nil
}

func bindPath(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), dest, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}

// writeServiceError maps a service error onto the HTTP status and error body
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.ServiceError
	if !errors.As(err, &svcErr) {
		h.logger.Error("unexpected error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, api.ErrorCodeInternalError, "internal error")
		return
	}

	status := statusForCode(svcErr.Code)
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterValue))
	case http.StatusInternalServerError:
		h.logger.Error("request failed", "path", r.URL.Path, "code", svcErr.Code, "error", err)
		writeError(w, status, api.ErrorCodeInternalError, "internal error")
		return
	}
	writeError(w, status, api.ErrorCode(svcErr.Code), svcErr.Message)
}

func statusForCode(code string) int {
	switch code {
	case service.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case service.ErrCodeInitiationRejected:
		return http.StatusPaymentRequired
	case service.ErrCodeInitiationTransportError, service.ErrCodeCaptureTransportError:
		return http.StatusServiceUnavailable
	case service.ErrCodeTransactionNotFound:
		return http.StatusNotFound
	case service.ErrCodeCaptureNotSupported, service.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func toAPITransaction(txn *models.Transaction) api.Transaction {
	out := api.Transaction{
		ID:                 txn.ID,
		Gateway:            txn.GatewayKind.Slug(),
		GatewayReference:   txn.GatewayReference,
		SecondaryReference: txn.SecondaryReference,
		Status:             string(txn.Status),
		Amount:             txn.Amount,
		Currency:           txn.Currency,
		Receipt:            txn.Receipt,
		FailureReason:      txn.FailureReason,
		ApprovalURL:        txn.MetadataString(models.MetadataApprovalURL),
		CreatedAt:          txn.CreatedAt,
		UpdatedAt:          txn.UpdatedAt,
	}
	for _, ev := range txn.RawEvents {
		out.Events = append(out.Events, api.Event{
			Seq:         ev.Seq,
			Source:      string(ev.Source),
			Outcome:     string(ev.Outcome),
			Disposition: string(ev.Disposition),
			FromStatus:  string(ev.FromStatus),
			ToStatus:    string(ev.ToStatus),
			Reason:      ev.Reason,
			ReceivedAt:  ev.ReceivedAt,
		})
	}
	return out
}
