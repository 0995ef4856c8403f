package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrMalformedPayload is returned by normalizers for bodies missing required fields
	ErrMalformedPayload = errors.New("malformed gateway payload")

	// ErrUnhandledEvent is returned for well-formed notifications the reconciler does not act on
	ErrUnhandledEvent = errors.New("unhandled gateway event")
)

// Notification is an inbound callback or webhook exactly as received
type Notification struct {
	ReceivedAt time.Time
	Header     http.Header
	Query      url.Values
	Payload    []byte
	RemoteAddr string
}
