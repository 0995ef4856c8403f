// Package mpesa integrates Safaricom M-Pesa STK push as the push-payment gateway.
package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
)

const (
	tokenPath        = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath      = "/mpesa/stkpush/v1/processrequest"
	timestampLayout  = "20060102150405"
	responseAccepted = "0"
)

var nairobi = time.FixedZone("EAT", 3*60*60)

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
	Amount            int64  `json:"Amount"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Client initiates STK push requests against the Daraja API
type Client struct {
	http   *http.Client
	tokens *gateway.TokenCache
	logger *slog.Logger
	now    func() time.Time
	cfg    config.MPesaConfig
}

// NewClient creates an M-Pesa client. httpClient carries the transport timeout.
func NewClient(cfg config.MPesaConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	c := &Client{
		http:   httpClient,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
	c.tokens = gateway.NewTokenCache(c.fetchToken)
	return c
}

// Kind reports the gateway kind served by this client
func (c *Client) Kind() models.GatewayKind {
	return models.GatewayKindPushPayment
}

// Initiate sends an STK push prompt to the payer's phone
func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Initiation, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(nairobi).Format(timestampLayout)
	description := req.Description
	if description == "" {
		description = c.cfg.Description
	}

	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount.IntPart(),
		PartyA:            req.PayerDescriptor,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PayerDescriptor,
		CallBackURL:       c.callbackURL(),
		AccountReference:  c.cfg.AccountRef,
		TransactionDesc:   description,
	}

	var resp stkPushResponse
	raw, err := gateway.DoJSON(ctx, c.http, gateway.JSONRequest{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + stkPushPath,
		Header: http.Header{"Authorization": {"Bearer " + token}},
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, c.classify(raw, err)
	}

	if resp.ResponseCode != responseAccepted {
		c.logger.Warn("stk push refused",
			"response_code", resp.ResponseCode,
			"description", resp.ResponseDescription,
		)
		return nil, &gateway.RejectedError{
			Payload:   raw,
			Reason:    resp.ResponseDescription,
			Reference: resp.CheckoutRequestID,
		}
	}
	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("stk push response missing CheckoutRequestID: %w", gateway.ErrMalformedPayload)
	}

	return &gateway.Initiation{
		Reference: resp.CheckoutRequestID,
		Payload:   raw,
		Metadata: map[string]any{
			models.MetadataPayer:             req.PayerDescriptor,
			models.MetadataMerchantRequestID: resp.MerchantRequestID,
		},
	}, nil
}

// Password is the STK push password: base64(shortcode + passkey + timestamp)
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// callbackURL appends the shared callback token so the verifier can recognise Safaricom's calls.
func (c *Client) callbackURL() string {
	if c.cfg.CallbackToken == "" {
		return c.cfg.CallbackURL
	}
	sep := "?"
	if strings.Contains(c.cfg.CallbackURL, "?") {
		sep = "&"
	}
	return c.cfg.CallbackURL + sep + "token=" + c.cfg.CallbackToken
}

func (c *Client) classify(raw []byte, err error) error {
	var httpErr *gateway.HTTPError
	if errors.Is(err, gateway.ErrUnreachable) || !errors.As(err, &httpErr) {
		return err
	}
	if httpErr.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return fmt.Errorf("mpesa refused access token: %w", err)
	}

	var resp errorResponse
	reason := http.StatusText(httpErr.StatusCode)
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr == nil && resp.ErrorMessage != "" {
		reason = resp.ErrorMessage
	}
	return &gateway.RejectedError{Payload: raw, Reason: reason}
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, gateway.Unreachable("mpesa oauth", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read
	}()

	if resp.StatusCode >= 500 {
		return "", 0, gateway.Unreachable("mpesa oauth", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("mpesa oauth token request returned HTTP %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}

	seconds, err := token.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 3599
	}
	return token.AccessToken, time.Duration(seconds) * time.Second, nil
}
