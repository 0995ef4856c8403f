package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes = 1 << 20

// HTTPError is a non-2xx, non-5xx provider response
type HTTPError struct {
	Body       []byte
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// JSONRequest describes one provider call
type JSONRequest struct {
	Header http.Header
	Body   any
	Method string
	URL    string
}

// DoJSON sends req and decodes a 2xx response body into out. It returns the
// raw response body alongside. Transport failures and 5xx responses are
// wrapped with ErrUnreachable; other non-2xx responses return *HTTPError.
func DoJSON(ctx context.Context, client *http.Client, req JSONRequest, out any) ([]byte, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, Unreachable(req.Method+" "+req.URL, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Unreachable("read response", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return raw, Unreachable(req.Method+" "+req.URL, &HTTPError{StatusCode: resp.StatusCode, Body: raw})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return raw, &HTTPError{StatusCode: resp.StatusCode, Body: raw}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return raw, nil
}
