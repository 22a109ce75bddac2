package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"ecosystem-api/internal/gqlrequest"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/observability"
)

// QueryLimits bounds the shape of operations accepted for execution.
// Zero disables a limit.
type QueryLimits struct {
	MaxDepth  int
	MaxFields int
}

const (
	codeQueryTooDeep  = "QUERY_TOO_DEEP"
	codeQueryTooLarge = "QUERY_TOO_LARGE"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once,
// stores the analysis in the request context for downstream middleware and
// rejects operations exceeding limits before they reach the resolvers.
func GraphQLRequestAnalysisMiddleware(limits QueryLimits, metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			logger := logging.FromContext(ctx)
			if fields := observability.GraphQLLogFields(ctx, analysis); len(fields) > 0 {
				logger = logger.WithFields(fields...)
				ctx = logging.WithLogger(ctx, logger)
			}
			if analysis.Err != nil {
				logger.Debug("graphql request could not be analyzed", slog.String("error", analysis.Err.Error()))
			}

			if analysis.Parsed() {
				if code, msg := limits.check(analysis); code != "" {
					if metrics != nil {
						metrics.RecordRejected(ctx, code)
					}
					logger.Warn("graphql request rejected",
						slog.String("code", code),
						slog.Int("depth", analysis.Depth),
						slog.Int("field_count", analysis.FieldCount),
					)
					writeGraphQLError(w, http.StatusBadRequest, msg, code)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (l QueryLimits) check(a *gqlrequest.Analysis) (code, message string) {
	if l.MaxDepth > 0 && a.Depth > l.MaxDepth {
		return codeQueryTooDeep, fmt.Sprintf("query depth %d exceeds the maximum of %d", a.Depth, l.MaxDepth)
	}
	if l.MaxFields > 0 && a.FieldCount > l.MaxFields {
		return codeQueryTooLarge, fmt.Sprintf("query selects %d fields, more than the maximum of %d", a.FieldCount, l.MaxFields)
	}
	return "", ""
}

type graphQLErrorBody struct {
	Errors []graphQLErrorEntry `json:"errors"`
}

type graphQLErrorEntry struct {
	Message    string            `json:"message"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// writeGraphQLError answers with a GraphQL-shaped error document.
func writeGraphQLError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(graphQLErrorBody{Errors: []graphQLErrorEntry{{
		Message:    message,
		Extensions: map[string]string{"code": code},
	}}})
}
