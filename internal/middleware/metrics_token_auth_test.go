package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsTokenMiddleware_RequiresToken(t *testing.T) {
	_, err := MetricsTokenMiddleware(MetricsTokenConfig{Token: "  "}, nil)
	assert.Error(t, err)
}

func TestMetricsTokenMiddleware(t *testing.T) {
	mw, err := MetricsTokenMiddleware(MetricsTokenConfig{Token: "scrape-secret"}, nil)
	require.NoError(t, err)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong token", header: "X-Metrics-Token", value: "nope", want: http.StatusUnauthorized},
		{name: "header token", header: "X-Metrics-Token", value: "scrape-secret", want: http.StatusNoContent},
		{name: "bearer token", header: "Authorization", value: "Bearer scrape-secret", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsTokenMiddleware_CustomHeader(t *testing.T) {
	mw, err := MetricsTokenMiddleware(MetricsTokenConfig{Token: "s", HeaderName: "X-Scrape"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Scrape", "s")
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
