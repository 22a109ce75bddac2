package middleware

import (
	"log/slog"
	"net/http"

	"ecosystem-api/internal/gqlrequest"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/observability"
	"ecosystem-api/internal/relation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TracerName is the instrumentation scope of the GraphQL execution span.
const TracerName = observability.MeterName + "/graphql"

// GraphQLTracingMiddleware wraps GraphQL execution in a "graphql.execute" span.
// Requests without a query document pass through untraced.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || analysis.Envelope.Query == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(TracerName).Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("span_id", spanCtx.SpanID().String()),
				))
			}
			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(ctx, analysis)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			cache, ok := relation.CacheFromContext(ctx)
			if !ok || !span.IsRecording() {
				return
			}
			hits, misses := cache.Hits(), cache.Misses()
			span.SetAttributes(
				attribute.Int("graphql.execution.cache_hits", int(hits)),
				attribute.Int("graphql.execution.cache_misses", int(misses)),
			)
			if total := hits + misses; total > 0 {
				span.SetAttributes(attribute.Float64("graphql.execution.cache_hit_ratio", float64(hits)/float64(total)))
			}
		})
	}
}
