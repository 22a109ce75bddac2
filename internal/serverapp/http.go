package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/config"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/middleware"
	"ecosystem-api/internal/observability"
	"ecosystem-api/internal/resolver"
	"ecosystem-api/internal/store"

	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	graphqlPath = "/graphql"
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// recordBackend is what the GraphQL layer needs from storage: record
// resolution plus user and capability lookups.
type recordBackend interface {
	store.RecordStore
	auth.UserStore
}

// buildGraphQLHandler builds the schema and wraps the executor in the
// GraphQL-specific middleware. From the outside in:
//
//	session auth -> analysis/limits -> collection cache -> metrics -> tracing -> graphql
//
// Tracing sits inside the collection cache so it can report cache stats on
// the execution span.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, records recordBackend, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	signer, err := auth.NewSigner([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create session signer: %w", err)
	}

	gateOpts := []auth.GateOption{auth.WithBcryptCost(cfg.Auth.BcryptCost)}
	if securityMetrics != nil {
		gateOpts = append(gateOpts, auth.WithSecurityRecorder(securityMetrics))
	}
	gate := auth.NewGate(records, signer, gateOpts...)

	resolverCfg := resolver.Config{
		DefaultLimit:   cfg.Resolver.DefaultLimit,
		RequireSession: cfg.Auth.MutationsRequireSession,
	}
	if graphqlMetrics != nil {
		resolverCfg.BatchObserver = graphqlMetrics
	}

	schema, err := resolver.NewResolver(records, gate, resolverCfg).BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	var h http.Handler = handler.New(&handler.Config{
		Schema:     &schema,
		Pretty:     true,
		GraphiQL:   cfg.Server.GraphiQLEnabled,
		Playground: false,
	})

	h = middleware.GraphQLTracingMiddleware()(h)
	if graphqlMetrics != nil {
		h = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(h)
		logger.Info("GraphQL metrics middleware enabled")
	}
	if cfg.Resolver.CollectionCacheEnabled {
		h = middleware.CollectionCacheMiddleware(graphqlMetrics)(h)
	}
	h = middleware.GraphQLRequestAnalysisMiddleware(middleware.QueryLimits{
		MaxDepth:  cfg.Server.MaxQueryDepth,
		MaxFields: cfg.Server.MaxQueryFields,
	}, graphqlMetrics)(h)
	h = middleware.SessionAuthMiddleware(signer, securityMetrics)(h)

	logger.Info("GraphQL schema built",
		slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
		slog.Bool("collection_cache", cfg.Resolver.CollectionCacheEnabled),
		slog.Int("default_limit", cfg.Resolver.DefaultLimit),
		slog.Bool("mutations_require_session", cfg.Auth.MutationsRequireSession),
	)
	return h, nil
}

// pinger is the health check dependency; *sql.DB satisfies it.
type pinger interface {
	PingContext(ctx context.Context) error
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db pinger, graphqlHandler http.Handler, meterProvider *observability.MeterProvider, securityMetrics *observability.SecurityMetrics) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, graphqlPath, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc(healthPath, healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		var metricsHandler http.Handler = promhttp.Handler()
		if cfg.Server.MetricsToken != "" {
			guard, err := middleware.MetricsTokenMiddleware(middleware.MetricsTokenConfig{Token: cfg.Server.MetricsToken}, securityMetrics)
			if err != nil {
				return nil, err
			}
			metricsHandler = guard(metricsHandler)
		}
		mux.Handle(metricsPath, metricsHandler)
		logger.Info("metrics endpoint enabled",
			slog.String("path", metricsPath),
			slog.Bool("token_required", cfg.Server.MetricsToken != ""),
		)
	}

	return mux, nil
}

// wrapHTTPHandler applies the transport middleware. From the outside in:
//
//	otelhttp -> logging -> CORS -> rate limit -> router
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Server.RateLimit.Enabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:   true,
			RPS:       cfg.Server.RateLimit.RPS,
			Burst:     cfg.Server.RateLimit.Burst,
			PerClient: cfg.Server.RateLimit.PerClient,
		})(handler)
	}

	if cfg.Server.CORS.Enabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   cfg.Server.CORS.AllowedMethods,
			AllowedHeaders:   cfg.Server.CORS.AllowedHeaders,
			ExposeHeaders:    cfg.Server.CORS.ExposeHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAge,
		})(handler)
	}

	handler = middleware.LoggingMiddleware(logger, healthPath, metricsPath)(handler)

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	return handler
}

// httpRootSpanName keeps span names low-cardinality by collapsing unknown
// paths.
func httpRootSpanName(r *http.Request) string {
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	switch r.URL.Path {
	case "/", graphqlPath, healthPath, metricsPath:
		return method + " " + r.URL.Path
	default:
		return method + " /*"
	}
}

func healthHandler(db pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", graphqlPath),
			slog.String("health_endpoint", healthPath),
			slog.Int("max_query_depth", cfg.Server.MaxQueryDepth),
			slog.Int("max_query_fields", cfg.Server.MaxQueryFields),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", metricsPath))
		}
		if cfg.Server.RateLimit.Enabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimit.RPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimit.Burst),
			)
		}
		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}
