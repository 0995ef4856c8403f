package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)

	assert.Nil(t, doc.Servers, "servers are cleared for host-independent routing")
	for _, path := range []string{
		"/api/v1/payments/push-payment",
		"/api/v1/payments/order-capture",
		"/api/v1/payments/{gateway}/{gatewayReference}",
		"/api/v1/payments/{gateway}/{gatewayReference}/capture",
		"/api/v1/payments/order-capture/{gatewayReference}/approval",
		"/api/v1/callbacks/{gateway}",
		"/health",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "missing path %s", path)
	}

	again, err := GetSwagger()
	require.NoError(t, err)
	assert.Same(t, doc, again)
}

func TestDocsRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterDocsRoutes(mux)

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/", http.StatusMovedPermanently, ""},
		{"/docs", http.StatusOK, "text/html; charset=utf-8"},
		{"/docs/openapi", http.StatusOK, "application/json"},
		{"/docs/openapi.yaml", http.StatusOK, "application/yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
		})
	}
}
