package middleware

import (
	"log/slog"
	"net/http"

	"ecosystem-api/internal/gqlrequest"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/observability"
	"ecosystem-api/internal/relation"
)

// CollectionCacheMiddleware attaches a per-request collection cache so nested
// relationship fields reuse one fetch per collection. The cache is discarded
// when the request ends. Mutation operations run without a cache so reads
// after a write see the write. It must run inside the request analysis
// middleware. metrics may be nil.
func CollectionCacheMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gqlrequest.AnalysisFromContext(r.Context()).IsMutation() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := relation.NewCacheContext(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))

			cache, _ := relation.CacheFromContext(ctx)
			hits, misses := int64(cache.Hits()), int64(cache.Misses())
			if hits+misses == 0 {
				return
			}
			if metrics != nil {
				metrics.RecordCacheStats(ctx, hits, misses)
			}
			logging.FromContext(ctx).Debug("collection cache stats",
				slog.Int64("hits", hits),
				slog.Int64("misses", misses),
			)
		})
	}
}
