package resolver

import (
	"context"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const resolverTracerName = observability.MeterName + "/resolver"

func startResolverSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(resolverTracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// finishResolverSpan records the outcome and ends span. Caller errors
// (validation, authentication, not found) are outcomes, not span errors.
func finishResolverSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()

	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind := apperr.KindOf(err); kind != 0 && kind != apperr.KindStore {
			outcome = "rejected"
		}
		span.SetAttributes(attribute.String("graphql.resolver.error_code", apperr.KindOf(err).Code()))
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("graphql.resolver.outcome", outcome))
}

func setMutationResultAttributes(span trace.Span, operation string, rows, affected int, err error) {
	if span == nil {
		return
	}
	class := "success"
	if err != nil {
		class = apperr.KindOf(err).String()
	}
	span.SetAttributes(
		attribute.String("graphql.mutation.operation", operation),
		attribute.Int("graphql.mutation.input_rows", rows),
		attribute.Int("graphql.mutation.result_rows", affected),
		attribute.String("graphql.mutation.result.class", class),
	)
}
