package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/db"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Ledger bundles the stores selected by configuration and the connections behind them
type Ledger struct {
	Transactions TransactionRepository
	Idempotency  IdempotencyRepository
	// SQL is set for the postgres driver
	SQL *db.DB
	// Redis is set whenever REDIS_ENABLED is true
	Redis  *redis.Client
	mongo  *mongo.Database
	logger *slog.Logger
}

// Open connects the configured ledger and idempotency backends
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{logger: logger}

	if cfg.Redis.Enabled {
		client, err := db.ConnectRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		l.Redis = client
	}

	switch cfg.Ledger.Driver {
	case config.DriverPostgres:
		database, err := db.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			l.Close(ctx)
			return nil, err
		}
		l.SQL = database
		l.Transactions = NewTransactionRepository(database)
	case config.DriverMongo:
		database, err := db.ConnectMongo(ctx, &cfg.Mongo, logger)
		if err != nil {
			l.Close(ctx)
			return nil, err
		}
		l.mongo = database
		repo, err := NewMongoTransactionRepository(ctx, database)
		if err != nil {
			l.Close(ctx)
			return nil, err
		}
		l.Transactions = repo
	case config.DriverMemory:
		logger.Warn("using in-memory ledger; transactions are lost on restart")
		l.Transactions = NewMemoryTransactionRepository()
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}

	switch cfg.Ledger.IdempotencyStore {
	case config.DriverPostgres:
		if l.SQL == nil {
			l.Close(ctx)
			return nil, errors.New("postgres idempotency store requires the postgres ledger")
		}
		l.Idempotency = NewIdempotencyRepository(l.SQL)
	case config.DriverRedis:
		if l.Redis == nil {
			l.Close(ctx)
			return nil, errors.New("redis idempotency store requires redis")
		}
		l.Idempotency = NewRedisIdempotencyRepository(l.Redis, cfg.App.IdempotencyTTL)
	default:
		l.Idempotency = NewMemoryIdempotencyRepository()
	}

	return l, nil
}

// PingContext reports whether the ledger backend answers
func (l *Ledger) PingContext(ctx context.Context) error {
	switch {
	case l.SQL != nil:
		return l.SQL.PingContext(ctx)
	case l.mongo != nil:
		return l.mongo.Client().Ping(ctx, nil)
	default:
		return nil
	}
}

// Close releases every connection the ledger opened
func (l *Ledger) Close(ctx context.Context) {
	if l.SQL != nil {
		if err := l.SQL.Close(); err != nil {
			l.logger.Error("failed to close database", "error", err)
		}
	}
	if l.mongo != nil {
		if err := l.mongo.Client().Disconnect(ctx); err != nil {
			l.logger.Error("failed to disconnect mongodb", "error", err)
		}
	}
	if l.Redis != nil {
		if err := l.Redis.Close(); err != nil {
			l.logger.Error("failed to close redis", "error", err)
		}
	}
}
