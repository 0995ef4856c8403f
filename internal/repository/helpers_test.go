package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/db"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	return db.ConnectForTest(t)
}

func truncateTables(t *testing.T, database *db.DB) {
	t.Helper()

	tables := []string{"transaction_events", "transactions", "unmatched_events", "idempotency_keys"}
	for _, table := range tables {
		_, err := database.ExecContext(context.Background(), "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

func newPushTransaction(reference string) *models.Transaction {
	return &models.Transaction{
		GatewayKind:      models.GatewayKindPushPayment,
		GatewayReference: reference,
		UserRef:          "user-1",
		Amount:           decimal.NewFromInt(100),
		Currency:         "KES",
		Status:           models.TransactionStatusPending,
		Metadata:         map[string]any{models.MetadataPayer: "254712345678"},
		RawEvents: []models.RawEvent{{
			ReceivedAt:  time.Now().UTC(),
			Payload:     json.RawMessage(`{"CheckoutRequestID":"` + reference + `"}`),
			DedupKey:    "initiate:" + reference,
			Source:      models.SourceInitiation,
			Outcome:     models.OutcomeInitiated,
			Disposition: models.DispositionInitiated,
			ToStatus:    models.TransactionStatusPending,
		}},
	}
}

func uniqueReference(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
