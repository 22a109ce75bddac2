package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/observability"
)

const defaultMetricsTokenHeader = "X-Metrics-Token"

// MetricsTokenConfig guards the metrics endpoint with a shared token.
type MetricsTokenConfig struct {
	Token      string
	HeaderName string
}

// MetricsTokenMiddleware rejects requests that do not present the shared
// token. The token is also accepted as a bearer token so Prometheus
// scrape configs can use their authorization block. metrics may be nil.
func MetricsTokenMiddleware(cfg MetricsTokenConfig, metrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("metrics token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = defaultMetricsTokenHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(headerName))
			if provided == "" {
				provided = bearerToken(r.Header.Get("Authorization"))
			}
			authorized := constantTimeTokenMatch(provided, token)
			if metrics != nil {
				metrics.RecordMetricsAccess(r.Context(), authorized)
			}
			if !authorized {
				logging.FromContext(r.Context()).Warn("metrics access denied",
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func constantTimeTokenMatch(provided, expected string) bool {
	providedDigest := sha256.Sum256([]byte(provided))
	expectedDigest := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(providedDigest[:], expectedDigest[:]) == 1
}
