package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
)

// NewTestDB creates a DB instance for testing with a no-op logger
// This is only for use in tests where logging output is not needed
func NewTestDB(sqlDB *sql.DB) *DB {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// ConnectForTest connects to the database described by the environment and
// applies the migrations. The test is skipped when no database answers.
func ConnectForTest(t *testing.T) *DB {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		t.Skipf("postgres not available: %v", err)
	}

	database := NewTestDB(sqlDB)
	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
