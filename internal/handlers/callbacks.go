package handlers

import (
	"io"
	"net/http"

	"github.com/benx421/payment-gateway/reconciler/internal/api"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
)

// ReceiveCallback handles POST /api/v1/callbacks/{gateway}. The response body
// is whatever acknowledgment the gateway expects.
func (h *Handler) ReceiveCallback(w http.ResponseWriter, r *http.Request) {
	receivedAt := h.now().UTC()

	kind, err := pathGateway(r)
	if err != nil {
		writeError(w, http.StatusNotFound, api.ErrorCodeInvalidRequest, err.Error())
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		h.logger.Warn("failed to read callback body", "gateway", kind, "remote_addr", r.RemoteAddr, "error", err)
		writeError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, "unreadable request body")
		return
	}

	ack := h.ingestor.Ingest(r.Context(), kind, &gateway.Notification{
		ReceivedAt: receivedAt,
		Header:     r.Header.Clone(),
		Query:      r.URL.Query(),
		Payload:    payload,
		RemoteAddr: r.RemoteAddr,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ack.Status)
	_, _ = w.Write(ack.Body) //nolint:errcheck // Best effort response writing
}
