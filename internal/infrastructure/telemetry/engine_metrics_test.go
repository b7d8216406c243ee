package telemetry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func int64Total(agg metricdata.Aggregation) int64 {
	var total int64
	if sum, ok := agg.(metricdata.Sum[int64]); ok {
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
	}
	return total
}

func float64Total(agg metricdata.Aggregation) float64 {
	var total float64
	if sum, ok := agg.(metricdata.Sum[float64]); ok {
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
	}
	return total
}

func TestEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewEngineMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAllocation(ctx, decimal.RequireFromString("600"), decimal.RequireFromString("400"))
	m.RecordAllocation(ctx, decimal.RequireFromString("250.50"), decimal.Zero)
	m.RecordReversal(ctx, decimal.RequireFromString("100"), decimal.RequireFromString("50"))
	m.RecordWalletOverflow(ctx, decimal.RequireFromString("400"))

	got := collect(t, reader)
	assert.Equal(t, int64(2), int64Total(got["loanbook_allocations_total"]))
	assert.InDelta(t, 850.5, float64Total(got["loanbook_allocated_amount_total"]), 0.001)
	assert.InDelta(t, 400, float64Total(got["loanbook_residual_amount_total"]), 0.001)
	assert.Equal(t, int64(1), int64Total(got["loanbook_reversals_total"]))
	assert.InDelta(t, 50, float64Total(got["loanbook_unreversed_amount_total"]), 0.001)
	assert.InDelta(t, 400, float64Total(got["loanbook_wallet_overflow_total"]), 0.001)

	sum, ok := got["loanbook_allocations_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2, "one series per outcome")
}

func TestNewEngineMetrics_NilMeter(t *testing.T) {
	_, err := NewEngineMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestEngineMetrics_NilReceiver(t *testing.T) {
	var m *EngineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordAllocation(ctx, decimal.RequireFromString("10"), decimal.Zero)
		m.RecordReversal(ctx, decimal.RequireFromString("10"), decimal.Zero)
		m.RecordWalletOverflow(ctx, decimal.RequireFromString("10"))
	})
}
