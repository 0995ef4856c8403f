// Package archive keeps a copy of every raw gateway notification outside the ledger.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/google/uuid"
)

// Archiver stores a raw notification body and returns the key it was stored under
type Archiver interface {
	Archive(ctx context.Context, kind models.GatewayKind, receivedAt time.Time, payload []byte) (string, error)
}

// NoopArchiver discards payloads
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, models.GatewayKind, time.Time, []byte) (string, error) {
	return "", nil
}

// objectKey lays payloads out by gateway and day: <prefix>/push-payment/2024/03/01/<nanos>-<uuid>.json
func objectKey(prefix string, kind models.GatewayKind, receivedAt time.Time) string {
	t := receivedAt.UTC()
	name := fmt.Sprintf("%d-%s.json", t.UnixNano(), uuid.NewString())
	return path.Join(prefix, kind.Slug(), t.Format("2006/01/02"), name)
}
