package mpesa

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

const receiptItem = "MpesaReceiptNumber"

type callbackItem struct {
	Value any    `json:"Value"`
	Name  string `json:"Name"`
}

type stkCallback struct {
	ResultCode        *int   `json:"ResultCode"`
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Normalizer turns STK push result callbacks into gateway-neutral events
type Normalizer struct{}

// Normalize parses Body.stkCallback. Safaricom sends no event id, so the dedup
// key is the checkout request id paired with the result code.
func (Normalizer) Normalize(_ context.Context, n *gateway.Notification) (*models.NormalizedEvent, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(n.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if envelope.Body == nil || envelope.Body.StkCallback == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", gateway.ErrMalformedPayload)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", gateway.ErrMalformedPayload)
	}
	if cb.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", gateway.ErrMalformedPayload)
	}

	code := strconv.Itoa(*cb.ResultCode)
	event := &models.NormalizedEvent{
		ReceivedAt:       n.ReceivedAt,
		Payload:          n.Payload,
		GatewayKind:      models.GatewayKindPushPayment,
		DedupKey:         cb.CheckoutRequestID + ":" + code,
		GatewayReference: cb.CheckoutRequestID,
		Source:           models.SourceCallback,
	}

	if *cb.ResultCode != 0 {
		event.Outcome = models.OutcomeFailure
		event.ReasonCode = code
		event.ReasonMessage = cb.ResultDesc
		return event, nil
	}

	receipt := cb.metadataString(receiptItem)
	if receipt == "" {
		return nil, fmt.Errorf("%w: successful callback without %s", gateway.ErrMalformedPayload, receiptItem)
	}
	event.Outcome = models.OutcomeSuccess
	event.ReceiptDetails = receipt
	return event, nil
}

func (cb *stkCallback) metadataString(name string) string {
	if cb.CallbackMetadata == nil {
		return ""
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != name {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// TokenVerifier authenticates callbacks by the shared token embedded in the
// callback URL and, when configured, by the caller's source address.
type TokenVerifier struct {
	token    string
	prefixes []netip.Prefix
}

// NewTokenVerifier parses the allowlisted CIDR ranges
func NewTokenVerifier(token string, allowedCIDRs []string) (*TokenVerifier, error) {
	if token == "" {
		return nil, errors.New("mpesa callback token is required")
	}

	v := &TokenVerifier{token: token}
	for _, cidr := range allowedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid callback CIDR %q: %w", cidr, err)
		}
		v.prefixes = append(v.prefixes, prefix)
	}
	return v, nil
}

// Verify checks the token query parameter and the remote address
func (v *TokenVerifier) Verify(_ context.Context, n *gateway.Notification) error {
	got := n.Query.Get("token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(v.token)) != 1 {
		return errors.New("callback token mismatch")
	}
	if len(v.prefixes) == 0 {
		return nil
	}

	addr, err := remoteAddr(n.RemoteAddr)
	if err != nil {
		return err
	}
	for _, prefix := range v.prefixes {
		if prefix.Contains(addr) {
			return nil
		}
	}
	return fmt.Errorf("callback source %s is not allowlisted", addr)
}

func remoteAddr(hostport string) (netip.Addr, error) {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid remote address %q: %w", hostport, err)
	}
	return addr.Unmap(), nil
}

type ackBody struct {
	ResultDesc string `json:"ResultDesc"`
	ResultCode int    `json:"ResultCode"`
}

// Acknowledger produces the response bodies Safaricom expects
type Acknowledger struct{}

func (Acknowledger) Accept() []byte {
	body, _ := json.Marshal(ackBody{ResultCode: 0, ResultDesc: "Accepted"}) //nolint:errcheck // static value
	return body
}

func (Acknowledger) Reject(reason string) []byte {
	body, _ := json.Marshal(ackBody{ResultCode: 1, ResultDesc: reason}) //nolint:errcheck // static shape
	return body
}
