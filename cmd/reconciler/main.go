package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/archive"
	"github.com/benx421/payment-gateway/reconciler/internal/callback"
	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/events"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway/mpesa"
	"github.com/benx421/payment-gateway/reconciler/internal/gateway/paypal"
	"github.com/benx421/payment-gateway/reconciler/internal/handlers"
	"github.com/benx421/payment-gateway/reconciler/internal/lock"
	"github.com/benx421/payment-gateway/reconciler/internal/metrics"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/benx421/payment-gateway/reconciler/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment reconciler",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"ledger", cfg.Ledger.Driver,
		"idempotency_store", cfg.Ledger.IdempotencyStore,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("reconciler stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	ledger, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ledger.Close(context.Background())

	m := metrics.New()

	var locker lock.Locker = lock.NewKeyedMutex()
	if ledger.Redis != nil {
		locker = lock.NewRedisLocker(ledger.Redis, cfg.Redis.LockTTL, logger)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, m.KafkaHooks(), logger)
		if err != nil {
			return err
		}
		publisher = kafka
	}
	defer publisher.Close()

	var archiver archive.Archiver = archive.NoopArchiver{}
	if cfg.Archive.Enabled {
		s3, err := archive.NewS3Archiver(ctx, &cfg.Archive)
		if err != nil {
			return err
		}
		archiver = s3
	}

	engine := service.NewEngine(service.EngineConfig{
		Repo:       ledger.Transactions,
		Locker:     locker,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     logger,
		MaxRetries: cfg.App.ApplyMaxRetries,
	})
	ingestor := callback.NewIngestor(engine, archiver, m, logger)

	httpClient := &http.Client{Timeout: cfg.App.GatewayHTTPTimeout}
	var adapters []gateway.Adapter
	var capturer gateway.Capturer

	if cfg.MPesa.ConsumerKey != "" {
		client := mpesa.NewClient(cfg.MPesa, httpClient, logger)
		verifier, err := mpesa.NewTokenVerifier(cfg.MPesa.CallbackToken, cfg.MPesa.AllowedCIDRs)
		if err != nil {
			return err
		}
		adapters = append(adapters, client)
		ingestor.Register(models.GatewayKindPushPayment, callback.Source{
			Verifier:     verifier,
			Normalizer:   mpesa.Normalizer{},
			Acknowledger: mpesa.Acknowledger{},
		})
	} else {
		logger.Warn("push-payment gateway disabled: MPESA_CONSUMER_KEY is empty")
	}

	if cfg.PayPal.ClientID != "" {
		client := paypal.NewClient(cfg.PayPal, httpClient, logger)
		verifier, err := paypal.NewWebhookVerifier(client, cfg.PayPal.WebhookID)
		if err != nil {
			return err
		}
		adapters = append(adapters, client)
		capturer = client
		ingestor.Register(models.GatewayKindOrderCapture, callback.Source{
			Verifier:     verifier,
			Normalizer:   paypal.Normalizer{},
			Acknowledger: paypal.Acknowledger{},
		})
	} else {
		logger.Warn("order-capture gateway disabled: PAYPAL_CLIENT_ID is empty")
	}

	initiation := service.NewInitiationService(ledger.Transactions, adapters, m, logger, cfg.App.InitiationTimeout)
	var captures service.Capturer = unavailableCapturer{}
	if capturer != nil {
		captures = service.NewCaptureOrchestrator(engine, capturer, locker, m, logger)
	}

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Handler:         handlers.NewHandler(initiation, engine, captures, ingestor, ledger, logger),
		Metrics:         m,
		IdempotencyRepo: ledger.Idempotency,
		Logger:          logger,
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	return nil
}

// unavailableCapturer answers approval and capture calls when no order-capture
// gateway is configured.
type unavailableCapturer struct{}

func (unavailableCapturer) ConfirmApproval(context.Context, string) (*service.ApplyResult, error) {
	return nil, errOrderCaptureDisabled
}

func (unavailableCapturer) Capture(context.Context, string) (*service.CaptureResult, error) {
	return nil, errOrderCaptureDisabled
}

var errOrderCaptureDisabled = &service.ServiceError{
	Code:    service.ErrCodeCaptureNotSupported,
	Message: "order-capture gateway is not configured",
}
