package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB, pings the server and returns the configured ledger database.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*mongo.Database, error) {
	logger.Info("connecting to mongodb", "database", cfg.Database)

	timeout := cfg.Timeout
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}

	client, err := mongo.Connect(ctx, opts.ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // client is unusable anyway
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("successfully connected to mongodb")
	return client.Database(cfg.Database), nil
}
