package observability

import (
	"context"
	"log/slog"

	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/gqlrequest"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GraphQLSpanAttributes builds span attributes from request analysis and the
// authenticated actor, if any.
func GraphQLSpanAttributes(ctx context.Context, analysis *gqlrequest.Analysis) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 10)

	if analysis != nil {
		if analysis.OperationName != "" {
			attrs = append(attrs, attribute.String("graphql.operation.name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			attrs = append(attrs, attribute.String("graphql.operation.type", analysis.OperationType))
		}
		if analysis.Hash != "" {
			attrs = append(attrs, attribute.String("graphql.operation.hash", analysis.Hash))
		}
		if analysis.Envelope.Size > 0 {
			attrs = append(attrs, attribute.Int("graphql.document.size_bytes", analysis.Envelope.Size))
		}
		if analysis.Parsed() {
			attrs = append(attrs,
				attribute.Int("graphql.query.field_count", analysis.FieldCount),
				attribute.Int("graphql.query.depth", analysis.Depth),
				attribute.Int("graphql.query.variable_count", analysis.Envelope.VariableCount),
			)
		}
	}

	if actor, ok := auth.ActorFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("enduser.id", actor.ID))
	}

	return attrs
}

// GraphQLLogFields builds structured log fields from request analysis.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis) []any {
	fields := make([]any, 0, 6)

	if analysis != nil {
		if analysis.OperationName != "" {
			fields = append(fields, slog.String("operation_name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			fields = append(fields, slog.String("operation_type", analysis.OperationType))
		}
		if analysis.Hash != "" {
			fields = append(fields, slog.String("operation_hash", analysis.Hash))
		}
	}

	if actor, ok := auth.ActorFromContext(ctx); ok {
		fields = append(fields, slog.String("user_id", actor.ID))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}

	return fields
}
