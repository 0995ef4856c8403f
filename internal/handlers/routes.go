package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/benx421/payment-gateway/reconciler/internal/api"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/middleware"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
)

// RouterConfig carries what NewRouter needs beyond the handler itself.
// An empty JWTSecret leaves the payments API unauthenticated.
type RouterConfig struct {
	Handler         *Handler
	Metrics         *metrics.Metrics
	IdempotencyRepo repository.IdempotencyRepository
	Logger          *slog.Logger
	JWTSecret       []byte
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	h := cfg.Handler

	mux := http.NewServeMux()
	api.RegisterDocsRoutes(mux)
	mux.HandleFunc("POST /api/v1/payments/push-payment", h.InitiatePushPayment)
	mux.HandleFunc("POST /api/v1/payments/order-capture", h.CreateOrder)
	mux.HandleFunc("GET /api/v1/payments/{gateway}/{gatewayReference}", h.GetTransaction)
	mux.HandleFunc("POST /api/v1/payments/order-capture/{gatewayReference}/approval", h.ConfirmApproval)
	mux.HandleFunc("POST /api/v1/payments/{gateway}/{gatewayReference}/capture", h.Capture)
	mux.HandleFunc("POST /api/v1/callbacks/{gateway}", h.ReceiveCallback)
	mux.HandleFunc("GET /health", h.GetHealth)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	doc, err := api.GetSwagger()
	if err != nil {
		return nil, err
	}
	validation, err := middleware.RequestValidation(doc, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build request validation: %w", err)
	}

	var finalHandler http.Handler = mux
	finalHandler = validation(finalHandler)

	if cfg.IdempotencyRepo != nil {
		finalHandler = middleware.Idempotency(cfg.IdempotencyRepo, cfg.Logger)(finalHandler)
	}

	if len(cfg.JWTSecret) > 0 {
		finalHandler = middleware.Authenticate(cfg.JWTSecret, cfg.Logger)(finalHandler)
	} else {
		cfg.Logger.Warn("JWT_SECRET is empty; payments API accepts unauthenticated requests")
	}

	return finalHandler, nil
}
