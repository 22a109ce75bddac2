package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const dashboardOrigin = "https://expenses.example.org"

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORSMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && cfg.Enabled && origin != "" {
			t.Fatal("handler should not be called for preflight")
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/graphql", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	rr := corsRequest(t, CORSConfig{Enabled: false}, http.MethodGet, dashboardOrigin)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	rr := corsRequest(t, CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{dashboardOrigin},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
	}, http.MethodPost, dashboardOrigin)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, dashboardOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, RequestIDHeader, rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	rr := corsRequest(t, CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{dashboardOrigin},
		MaxAge:         3600,
	}, http.MethodOptions, dashboardOrigin)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, dashboardOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization, X-Request-ID", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	cfg := CORSConfig{Enabled: true, AllowedOrigins: []string{dashboardOrigin}}

	rr := corsRequest(t, cfg, http.MethodGet, "https://elsewhere.example.com")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = corsRequest(t, cfg, http.MethodOptions, "https://elsewhere.example.com")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSMiddleware_WildcardNeverAllowsCredentials(t *testing.T) {
	rr := corsRequest(t, CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	}, http.MethodGet, "https://any.example.com")

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Vary"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddleware_OriginAbsent(t *testing.T) {
	rr := corsRequest(t, CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
