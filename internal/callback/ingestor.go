// Package callback receives gateway notifications and hands verified, normalized events to the engine.
package callback

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/benx421/payment-gateway/reconciler/internal/archive"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
)

// ErrAuthentication marks a notification that failed gateway verification
var ErrAuthentication = errors.New("notification failed authentication")

// Verifier authenticates a raw notification. Errors wrapping
// gateway.ErrUnreachable mean verification could not be performed.
type Verifier interface {
	Verify(ctx context.Context, n *gateway.Notification) error
}

// Normalizer maps a gateway payload onto a NormalizedEvent
type Normalizer interface {
	Normalize(ctx context.Context, n *gateway.Notification) (*models.NormalizedEvent, error)
}

// Acknowledger renders the response bodies a gateway expects
type Acknowledger interface {
	Accept() []byte
	Reject(reason string) []byte
}

// Source bundles the per-gateway pieces of notification handling
type Source struct {
	Verifier     Verifier
	Normalizer   Normalizer
	Acknowledger Acknowledger
}

// Applier records normalized events
type Applier interface {
	Apply(ctx context.Context, ev *models.NormalizedEvent) (*service.ApplyResult, error)
}

// Ack is the response owed to the gateway
type Ack struct {
	Err         error
	Body        []byte
	Disposition models.Disposition
	Status      int
}

// Ingestor runs archive, verify, normalize, and apply for every inbound notification
type Ingestor struct {
	sources  map[models.GatewayKind]Source
	engine   Applier
	archiver archive.Archiver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor with no sources registered
func NewIngestor(engine Applier, archiver archive.Archiver, m *metrics.Metrics, logger *slog.Logger) *Ingestor {
	if archiver == nil {
		archiver = archive.NoopArchiver{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &Ingestor{
		sources:  make(map[models.GatewayKind]Source),
		engine:   engine,
		archiver: archiver,
		metrics:  m,
		logger:   logger,
	}
}

// Register installs the source for kind, replacing any previous one
func (i *Ingestor) Register(kind models.GatewayKind, source Source) {
	i.sources[kind] = source
}

// Ingest processes one notification.
//
// Verification failures answer 401 (503 when the verifier could not reach the
// gateway) and malformed payloads 400; neither reaches the engine. Everything
// the engine durably recorded, including unknown references and stale events,
// answers 200 so the gateway stops retrying. A ledger failure answers 500 so
// it retries.
func (i *Ingestor) Ingest(ctx context.Context, kind models.GatewayKind, n *gateway.Notification) Ack {
	source, ok := i.sources[kind]
	if !ok {
		return Ack{
			Status: http.StatusNotFound,
			Body:   []byte(`{"error":"unknown gateway"}`),
			Err:    errors.New("no notification source for " + string(kind)),
		}
	}

	ack := i.ingest(context.WithoutCancel(ctx), kind, source, n)
	i.metrics.CallbackAnswered(kind.Slug(), ack.Status)
	return ack
}

func (i *Ingestor) ingest(ctx context.Context, kind models.GatewayKind, source Source, n *gateway.Notification) Ack {
	logger := i.logger.With("gateway", kind, "remote_addr", n.RemoteAddr)

	if key, err := i.archiver.Archive(ctx, kind, n.ReceivedAt, n.Payload); err != nil {
		logger.Warn("failed to archive notification", "error", err)
	} else if key != "" {
		logger.Debug("archived notification", "key", key)
	}

	if err := source.Verifier.Verify(ctx, n); err != nil {
		if errors.Is(err, gateway.ErrUnreachable) {
			logger.Error("notification verification unavailable", "error", err)
			return Ack{
				Status: http.StatusServiceUnavailable,
				Body:   source.Acknowledger.Reject("verification unavailable"),
				Err:    err,
			}
		}
		logger.Warn("notification failed authentication", "error", err)
		return Ack{
			Status: http.StatusUnauthorized,
			Body:   source.Acknowledger.Reject("authentication failed"),
			Err:    errors.Join(ErrAuthentication, err),
		}
	}

	event, err := source.Normalizer.Normalize(ctx, n)
	if errors.Is(err, gateway.ErrUnhandledEvent) {
		logger.Info("notification acknowledged without action", "reason", err)
		return Ack{Status: http.StatusOK, Body: source.Acknowledger.Accept()}
	}
	if err == nil {
		err = event.Validate()
	}
	if err != nil {
		logger.Warn("malformed notification", "error", err)
		return Ack{
			Status: http.StatusBadRequest,
			Body:   source.Acknowledger.Reject("malformed payload"),
			Err:    err,
		}
	}

	result, err := i.engine.Apply(ctx, event)
	if err != nil {
		logger.Error("failed to record notification",
			"gateway_reference", event.GatewayReference,
			"dedup_key", event.DedupKey,
			"error", err,
		)
		return Ack{
			Status: http.StatusInternalServerError,
			Body:   source.Acknowledger.Reject("temporarily unable to record notification"),
			Err:    err,
		}
	}

	logger.Info("notification processed",
		"gateway_reference", event.GatewayReference,
		"dedup_key", event.DedupKey,
		"outcome", event.Outcome,
		"disposition", result.Disposition,
	)
	return Ack{
		Status:      http.StatusOK,
		Body:        source.Acknowledger.Accept(),
		Disposition: result.Disposition,
	}
}
