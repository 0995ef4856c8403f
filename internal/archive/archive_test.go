package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)

	key := objectKey("callbacks", models.GatewayKindPushPayment, at)
	assert.True(t, strings.HasPrefix(key, "callbacks/push-payment/2024/03/01/"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)

	other := objectKey("callbacks", models.GatewayKindPushPayment, at)
	assert.NotEqual(t, key, other, "keys must not collide for the same instant")

	noPrefix := objectKey("", models.GatewayKindOrderCapture, at)
	assert.True(t, strings.HasPrefix(noPrefix, "order-capture/"), noPrefix)
}

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), &config.ArchiveConfig{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3Archiver_Archive(t *testing.T) {
	var (
		mu      sync.Mutex
		method  string
		reqPath string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method = r.Method
		reqPath = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archiver, err := NewS3Archiver(context.Background(), &config.ArchiveConfig{
		Region:    "us-east-1",
		Bucket:    "raw-callbacks",
		AccessKey: "test",
		SecretKey: "test",
		Endpoint:  srv.URL,
		Prefix:    "callbacks",
	})
	require.NoError(t, err)

	key, err := archiver.Archive(context.Background(), models.GatewayKindOrderCapture, time.Now(), []byte(`{"id":"WH-1"}`))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/raw-callbacks/"+key, reqPath)
	assert.True(t, strings.HasPrefix(key, "callbacks/order-capture/"))
}

func TestNoopArchiver(t *testing.T) {
	key, err := NoopArchiver{}.Archive(context.Background(), models.GatewayKindPushPayment, time.Now(), []byte("{}"))
	assert.NoError(t, err)
	assert.Empty(t, key)
}
