// Package paypal integrates PayPal Orders v2 as the order-capture gateway.
package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

const (
	tokenPath   = "/v1/oauth2/token"
	ordersPath  = "/v2/checkout/orders"
	capturePath = "/v2/checkout/orders/%s/capture"
)

// Order and capture statuses reported by PayPal
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusDeclined  = "DECLINED"
	StatusFailed    = "FAILED"
)

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type payer struct {
	EmailAddress string `json:"email_address,omitempty"`
}

type createOrderRequest struct {
	Payer              *payer             `json:"payer,omitempty"`
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type orderResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Links         []link          `json:"links"`
	PurchaseUnits []capturedUnits `json:"purchase_units"`
}

type capturedUnits struct {
	Payments struct {
		Captures []capture `json:"captures"`
	} `json:"payments"`
}

type capture struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e errorResponse) reason() string {
	if len(e.Details) > 0 && e.Details[0].Issue != "" {
		return e.Details[0].Issue
	}
	if e.Name != "" {
		return e.Name
	}
	return e.Message
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Client creates and captures orders through the PayPal REST API
type Client struct {
	http   *http.Client
	tokens *gateway.TokenCache
	logger *slog.Logger
	cfg    config.PayPalConfig
}

// NewClient creates a PayPal client. httpClient carries the transport timeout.
func NewClient(cfg config.PayPalConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	c := &Client{
		http:   httpClient,
		logger: logger,
		cfg:    cfg,
	}
	c.tokens = gateway.NewTokenCache(c.fetchToken)
	return c
}

// Kind reports the gateway kind served by this client
func (c *Client) Kind() models.GatewayKind {
	return models.GatewayKindOrderCapture
}

// Initiate creates an order with intent CAPTURE. The payer must visit the
// returned approval URL before the order can be captured.
func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Initiation, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: amount{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
			Description: req.Description,
		}},
		ApplicationContext: applicationContext{
			ReturnURL:  c.cfg.ReturnURL,
			CancelURL:  c.cfg.CancelURL,
			UserAction: "PAY_NOW",
		},
	}
	if req.PayerDescriptor != "" {
		body.Payer = &payer{EmailAddress: req.PayerDescriptor}
	}

	var order orderResponse
	raw, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+ordersPath, nil, body, &order)
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("create order response missing id: %w", gateway.ErrMalformedPayload)
	}

	approvalURL := order.link("approve")
	if approvalURL == "" {
		approvalURL = order.link("payer-action")
	}

	metadata := map[string]any{models.MetadataApprovalURL: approvalURL}
	if req.PayerDescriptor != "" {
		metadata[models.MetadataPayer] = req.PayerDescriptor
	}

	return &gateway.Initiation{
		Reference:   order.ID,
		ApprovalURL: approvalURL,
		Payload:     raw,
		Metadata:    metadata,
	}, nil
}

// Capture finalizes an approved order. requestID is sent as PayPal-Request-Id,
// so repeating a capture with the same id returns the original result.
func (c *Client) Capture(ctx context.Context, reference, requestID string) (*gateway.CaptureResult, error) {
	header := http.Header{
		"Paypal-Request-Id": {requestID},
		"Prefer":            {"return=representation"},
	}

	var order orderResponse
	raw, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+fmt.Sprintf(capturePath, url.PathEscape(reference)), header, struct{}{}, &order)
	if err != nil {
		return nil, err
	}

	status := order.Status
	var captureID, reason string
	if cp := order.firstCapture(); cp != nil {
		status = cp.Status
		captureID = cp.ID
		reason = cp.StatusDetails.Reason
	}

	switch status {
	case StatusCompleted, StatusPending:
		if captureID == "" {
			return nil, fmt.Errorf("capture response for %s missing capture id: %w", reference, gateway.ErrMalformedPayload)
		}
		if status == StatusPending {
			c.logger.Info("capture pending at provider", "order_id", reference, "capture_id", captureID, "reason", reason)
		}
		return &gateway.CaptureResult{CaptureID: captureID, Status: status, Payload: raw}, nil
	default:
		if reason == "" {
			reason = status
		}
		return nil, &gateway.RejectedError{Payload: raw, Reason: reason, Reference: reference}
	}
}

func (c *Client) do(ctx context.Context, method, target string, header http.Header, body, out any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", "Bearer "+token)

	raw, err := gateway.DoJSON(ctx, c.http, gateway.JSONRequest{
		Method: method,
		URL:    target,
		Header: header,
		Body:   body,
	}, out)
	if err != nil {
		return raw, c.classify(raw, err)
	}
	return raw, nil
}

func (c *Client) classify(raw []byte, err error) error {
	var httpErr *gateway.HTTPError
	if errors.Is(err, gateway.ErrUnreachable) || !errors.As(err, &httpErr) {
		return err
	}
	if httpErr.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return fmt.Errorf("paypal refused access token: %w", err)
	}

	var resp errorResponse
	reason := http.StatusText(httpErr.StatusCode)
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr == nil && resp.reason() != "" {
		reason = resp.reason()
	}
	c.logger.Warn("paypal request refused", "status", httpErr.StatusCode, "reason", reason)
	return &gateway.RejectedError{Payload: raw, Reason: reason}
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, gateway.Unreachable("paypal oauth", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read
	}()

	if resp.StatusCode >= 500 {
		return "", 0, gateway.Unreachable("paypal oauth", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("paypal oauth token request returned HTTP %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = 32400
	}
	return token.AccessToken, time.Duration(token.ExpiresIn) * time.Second, nil
}

func (o *orderResponse) link(rel string) string {
	for _, l := range o.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

func (o *orderResponse) firstCapture() *capture {
	for i := range o.PurchaseUnits {
		if captures := o.PurchaseUnits[i].Payments.Captures; len(captures) > 0 {
			return &captures[0]
		}
	}
	return nil
}
