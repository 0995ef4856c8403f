package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

const verifyPath = "/v1/notifications/verify-webhook-signature"

// Webhook event types acted on by the reconciler
const (
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventOrderCompleted   = "CHECKOUT.ORDER.COMPLETED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventCaptureDeclined  = "PAYMENT.CAPTURE.DECLINED"
)

const verificationSuccess = "SUCCESS"

var transmissionHeaders = []string{
	"PAYPAL-AUTH-ALGO",
	"PAYPAL-CERT-URL",
	"PAYPAL-TRANSMISSION-ID",
	"PAYPAL-TRANSMISSION-SIG",
	"PAYPAL-TRANSMISSION-TIME",
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// WebhookVerifier asks PayPal to confirm a webhook's transmission signature
type WebhookVerifier struct {
	client    *Client
	webhookID string
}

// NewWebhookVerifier creates a verifier bound to the configured webhook id
func NewWebhookVerifier(client *Client, webhookID string) (*WebhookVerifier, error) {
	if webhookID == "" {
		return nil, errors.New("paypal webhook id is required")
	}
	return &WebhookVerifier{client: client, webhookID: webhookID}, nil
}

// Verify passes only when PayPal reports verification_status SUCCESS. Errors
// wrapping gateway.ErrUnreachable mean the answer is unknown, not negative.
func (v *WebhookVerifier) Verify(ctx context.Context, n *gateway.Notification) error {
	values := make([]string, len(transmissionHeaders))
	for i, name := range transmissionHeaders {
		values[i] = n.Header.Get(name)
		if values[i] == "" {
			return fmt.Errorf("missing %s header", name)
		}
	}
	if !json.Valid(n.Payload) {
		return errors.New("webhook body is not valid JSON")
	}

	body := verifyRequest{
		AuthAlgo:         values[0],
		CertURL:          values[1],
		TransmissionID:   values[2],
		TransmissionSig:  values[3],
		TransmissionTime: values[4],
		WebhookID:        v.webhookID,
		WebhookEvent:     n.Payload,
	}

	var resp verifyResponse
	if _, err := v.client.do(ctx, http.MethodPost, v.client.cfg.BaseURL+verifyPath, nil, body, &resp); err != nil {
		if errors.Is(err, gateway.ErrUnreachable) {
			return err
		}
		return fmt.Errorf("webhook verification call failed: %w", err)
	}
	if resp.VerificationStatus != verificationSuccess {
		return fmt.Errorf("webhook signature verification returned %q", resp.VerificationStatus)
	}
	return nil
}

type webhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  webhookResource `json:"resource"`
}

type webhookResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// Normalizer turns PayPal webhook events into gateway-neutral events
type Normalizer struct{}

// Normalize maps order and capture events. The webhook event id is the dedup key.
// Event types the reconciler does not act on return gateway.ErrUnhandledEvent.
func (Normalizer) Normalize(_ context.Context, n *gateway.Notification) (*models.NormalizedEvent, error) {
	var ev webhookEvent
	if err := json.Unmarshal(n.Payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if ev.ID == "" || ev.EventType == "" {
		return nil, fmt.Errorf("%w: missing id or event_type", gateway.ErrMalformedPayload)
	}

	event := &models.NormalizedEvent{
		ReceivedAt:  n.ReceivedAt,
		Payload:     n.Payload,
		GatewayKind: models.GatewayKindOrderCapture,
		DedupKey:    ev.ID,
		Source:      models.SourceWebhook,
	}

	switch ev.EventType {
	case EventOrderApproved:
		event.Outcome = models.OutcomeApproved
		event.GatewayReference = ev.Resource.ID
	case EventOrderCompleted:
		event.Outcome = models.OutcomeSuccess
		event.GatewayReference = ev.Resource.ID
	case EventCaptureCompleted:
		event.Outcome = models.OutcomeSuccess
		event.GatewayReference = ev.Resource.orderID()
		event.SecondaryReference = ev.Resource.ID
		event.ReceiptDetails = ev.Resource.ID
	case EventCaptureDenied, EventCaptureDeclined:
		event.Outcome = models.OutcomeFailure
		event.GatewayReference = ev.Resource.orderID()
		event.SecondaryReference = ev.Resource.ID
		event.ReasonCode = ev.Resource.Status
		event.ReasonMessage = ev.Resource.StatusDetails.Reason
	default:
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnhandledEvent, ev.EventType)
	}

	if event.GatewayReference == "" {
		return nil, fmt.Errorf("%w: %s without resource id", gateway.ErrMalformedPayload, ev.EventType)
	}
	return event, nil
}

func (r *webhookResource) orderID() string {
	if id := r.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	return r.ID
}

// Acknowledger produces webhook response bodies. PayPal only inspects the status code.
type Acknowledger struct{}

func (Acknowledger) Accept() []byte {
	return []byte(`{"received":true}`)
}

func (Acknowledger) Reject(reason string) []byte {
	body, _ := json.Marshal(map[string]string{"error": reason}) //nolint:errcheck // static shape
	return body
}
