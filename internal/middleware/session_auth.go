package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionAuthMiddleware resolves the bearer token issued by userLogin into
// an actor on the request context. Requests without an Authorization header
// continue anonymously; resolvers decide whether an actor is required.
// A header carrying an invalid or expired token is rejected with 401.
func SessionAuthMiddleware(signer *auth.Signer, metrics *observability.SecurityMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqLogger := logging.FromContext(r.Context())
			tokenString := bearerToken(header)
			if tokenString == "" {
				if metrics != nil {
					metrics.RecordTokenValidationError(r.Context(), "malformed_header")
				}
				reqLogger.Warn("authentication failed: malformed authorization header",
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "malformed authorization header")
				return
			}

			actor, err := signer.Verify(tokenString)
			if err != nil {
				errorType := tokenErrorType(err)
				if metrics != nil {
					metrics.RecordTokenValidationError(r.Context(), errorType)
				}
				reqLogger.Warn("session token validation failed",
					slog.String("error_type", errorType),
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid token")
				return
			}

			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("enduser.id", actor.ID),
					attribute.Bool("auth.authenticated", true),
				)
			}

			reqLogger = reqLogger.WithActor(actor.ID)
			reqLogger.Debug("session authenticated", slog.String("user_name", actor.UserName))

			ctx := auth.WithActor(r.Context(), actor)
			ctx = logging.WithLogger(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenErrorType(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, message)
}
