package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func installManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestGraphQLMetricsCounters(t *testing.T) {
	reader := installManualReader(t)
	m, err := InitGraphQLMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordCacheStats(ctx, 3, 1)
	m.RecordCacheStats(ctx, 0, 0)
	m.RecordMutationBatch(ctx, "add", "BudgetStatementLineItem", 4, true)
	m.RecordRejected(ctx, "max_depth")

	assert.Equal(t, int64(3), sumOf(t, reader, "graphql.collection_cache.hits"))
	assert.Equal(t, int64(1), sumOf(t, reader, "graphql.collection_cache.misses"))
	assert.Equal(t, int64(1), sumOf(t, reader, "graphql.mutation.failures"))
	assert.Equal(t, int64(1), sumOf(t, reader, "graphql.requests.rejected"))
}

func TestSecurityMetricsLogin(t *testing.T) {
	reader := installManualReader(t)
	m, err := InitSecurityMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordLogin(ctx, true, "")
	m.RecordLogin(ctx, false, "wrong_password")
	m.RecordCapabilityDenied(ctx, "Manage", "System")

	assert.Equal(t, int64(2), sumOf(t, reader, "security.login.attempts.total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "security.login.failures.total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "security.capability.denials.total"))
}
