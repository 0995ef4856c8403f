package handlers

import (
	"net/http"

	"github.com/benx421/payment-gateway/reconciler/internal/api"
	"github.com/benx421/payment-gateway/reconciler/internal/middleware"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
)

// InitiatePushPayment handles POST /api/v1/payments/push-payment
func (h *Handler) InitiatePushPayment(w http.ResponseWriter, r *http.Request) {
	var body api.PushPaymentRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}

	h.initiate(w, r, service.InitiateRequest{
		Kind:            models.GatewayKindPushPayment,
		Amount:          body.Amount,
		Currency:        body.Currency,
		PayerDescriptor: body.PhoneNumber,
		Description:     body.Description,
	})
}

// CreateOrder handles POST /api/v1/payments/order-capture
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body api.OrderRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}

	h.initiate(w, r, service.InitiateRequest{
		Kind:            models.GatewayKindOrderCapture,
		Amount:          body.Amount,
		Currency:        body.Currency,
		PayerDescriptor: body.PayerEmail,
		Description:     body.Description,
	})
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request, req service.InitiateRequest) {
	req.UserRef, _ = middleware.UserRef(r.Context())

	result, err := h.initiator.Initiate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := toAPITransaction(result.Transaction)
	if result.ApprovalURL != "" {
		resp.ApprovalURL = result.ApprovalURL
	}
	w.Header().Set("Location", "/api/v1/payments/"+req.Kind.Slug()+"/"+result.Transaction.GatewayReference)
	writeJSON(w, http.StatusCreated, resp)
}

// GetTransaction handles GET /api/v1/payments/{gateway}/{gatewayReference}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := pathGateway(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}
	reference, err := pathReference(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}

	txn, err := h.reconciler.Get(r.Context(), kind, reference)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITransaction(txn))
}

// ConfirmApproval handles POST /api/v1/payments/order-capture/{gatewayReference}/approval
func (h *Handler) ConfirmApproval(w http.ResponseWriter, r *http.Request) {
	reference, err := pathReference(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}

	result, err := h.capturer.ConfirmApproval(r.Context(), reference)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITransaction(result.Transaction))
}

// Capture handles POST /api/v1/payments/{gateway}/{gatewayReference}/capture.
// A transaction that is not awaiting capture answers 200 with its stored state
// and captured=false.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	kind, err := pathGateway(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}
	reference, err := pathReference(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		return
	}
	if kind != models.GatewayKindOrderCapture {
		writeError(w, http.StatusConflict, api.ErrorCodeCaptureNotSupported,
			kind.Slug()+" transactions complete without a capture step")
		return
	}

	result, err := h.capturer.Capture(r.Context(), reference)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CaptureResponse{
		Transaction: toAPITransaction(result.Transaction),
		Captured:    result.Captured,
	})
}
