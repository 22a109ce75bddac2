package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds the request, cache and mutation instruments.
type GraphQLMetrics struct {
	requestDuration  metric.Float64Histogram
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	activeRequests   metric.Int64UpDownCounter
	rejectedRequests metric.Int64Counter
	queryDepth       metric.Int64Histogram
	queryFields      metric.Int64Histogram
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	mutationRows     metric.Int64Histogram
	mutationFailures metric.Int64Counter
}

// InitGraphQLMetrics creates the GraphQL instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(MeterName)
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL responses carrying errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.rejectedRequests, err = meter.Int64Counter(
		"graphql.requests.rejected",
		metric.WithDescription("Number of GraphQL requests rejected before execution"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rejected requests counter: %w", err)
	}
	if m.queryDepth, err = meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}
	if m.queryFields, err = meter.Int64Histogram(
		"graphql.query.field_count",
		metric.WithDescription("Number of fields selected by GraphQL operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create query field count histogram: %w", err)
	}
	if m.cacheHits, err = meter.Int64Counter(
		"graphql.collection_cache.hits",
		metric.WithDescription("Relationship lookups served from the per-request collection cache"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"graphql.collection_cache.misses",
		metric.WithDescription("Relationship lookups that fetched a collection from the store"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}
	if m.mutationRows, err = meter.Int64Histogram(
		"graphql.mutation.batch_rows",
		metric.WithDescription("Number of rows submitted per batch mutation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mutation batch rows histogram: %w", err)
	}
	if m.mutationFailures, err = meter.Int64Counter(
		"graphql.mutation.failures",
		metric.WithDescription("Number of batch mutations the store rejected"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mutation failures counter: %w", err)
	}

	return m, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryShape records the depth and field count of an operation.
func (m *GraphQLMetrics) RecordQueryShape(ctx context.Context, depth, fields int, operationType string) {
	attrs := metric.WithAttributes(attribute.String("operation_type", operationType))
	m.queryDepth.Record(ctx, int64(depth), attrs)
	m.queryFields.Record(ctx, int64(fields), attrs)
}

// RecordRejected counts a request refused before execution.
func (m *GraphQLMetrics) RecordRejected(ctx context.Context, reason string) {
	m.rejectedRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordCacheStats adds one request's collection cache hits and misses.
func (m *GraphQLMetrics) RecordCacheStats(ctx context.Context, hits, misses int64) {
	if hits > 0 {
		m.cacheHits.Add(ctx, hits)
	}
	if misses > 0 {
		m.cacheMisses.Add(ctx, misses)
	}
}

// RecordMutationBatch records the size and outcome of one batch mutation.
func (m *GraphQLMetrics) RecordMutationBatch(ctx context.Context, operation, collection string, rows int, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("collection", collection),
	)
	m.mutationRows.Record(ctx, int64(rows), attrs)
	if failed {
		m.mutationFailures.Add(ctx, 1, attrs)
	}
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}
