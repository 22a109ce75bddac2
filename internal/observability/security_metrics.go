package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics counts login outcomes, bearer token rejections and
// capability denials.
type SecurityMetrics struct {
	loginAttempts         metric.Int64Counter
	loginFailures         metric.Int64Counter
	capabilityDenials     metric.Int64Counter
	tokenValidationErrors metric.Int64Counter
	metricsAccess         metric.Int64Counter
}

// InitSecurityMetrics initializes security-specific metrics
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter(MeterName + "/security")
	m := &SecurityMetrics{}
	var err error

	if m.loginAttempts, err = meter.Int64Counter(
		"security.login.attempts.total",
		metric.WithDescription("Total number of userLogin attempts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create login attempts counter: %w", err)
	}
	if m.loginFailures, err = meter.Int64Counter(
		"security.login.failures.total",
		metric.WithDescription("Total number of failed userLogin attempts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create login failures counter: %w", err)
	}
	if m.capabilityDenials, err = meter.Int64Counter(
		"security.capability.denials.total",
		metric.WithDescription("Total number of operations refused for a missing capability"),
	); err != nil {
		return nil, fmt.Errorf("failed to create capability denials counter: %w", err)
	}
	if m.tokenValidationErrors, err = meter.Int64Counter(
		"security.token.validation_errors.total",
		metric.WithDescription("Total number of bearer tokens rejected"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token validation errors counter: %w", err)
	}
	if m.metricsAccess, err = meter.Int64Counter(
		"security.metrics.access.total",
		metric.WithDescription("Total number of metrics endpoint requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create metrics access counter: %w", err)
	}

	return m, nil
}

// RecordLogin records a login outcome. reason is empty on success.
func (m *SecurityMetrics) RecordLogin(ctx context.Context, success bool, reason string) {
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
	if !success {
		m.loginFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
		))
	}
}

// RecordCapabilityDenied records an operation refused for a missing capability.
func (m *SecurityMetrics) RecordCapabilityDenied(ctx context.Context, capability, resource string) {
	m.capabilityDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("resource", resource),
	))
}

// RecordTokenValidationError records a rejected bearer token.
func (m *SecurityMetrics) RecordTokenValidationError(ctx context.Context, errorType string) {
	m.tokenValidationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
	))
}

// RecordMetricsAccess records a request to the metrics endpoint.
func (m *SecurityMetrics) RecordMetricsAccess(ctx context.Context, authorized bool) {
	m.metricsAccess.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("authorized", authorized),
	))
}
