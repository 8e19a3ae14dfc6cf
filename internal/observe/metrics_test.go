package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics unexpected error: %v", err)
	}
	return m, reader
}

// collectSum finds an Int64 sum data point total for the named instrument.
func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, inst := range sm.Metrics {
			if inst.Name != name {
				continue
			}
			sum, ok := inst.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("instrument %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRecordToolCall(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "roi_config_read", "ok", 0.002)
	m.RecordToolCall(ctx, "roi_config_apply", "error", 0.004)

	if got := collectSum(t, reader, "roiconf.tool.calls"); got != 2 {
		t.Errorf("tool.calls = %d, want 2", got)
	}
}

func TestRecordWrite(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWrite(ctx, true)
	m.RecordWrite(ctx, false)

	if got := collectSum(t, reader, "roiconf.config.writes"); got != 2 {
		t.Errorf("config.writes = %d, want 2", got)
	}
	if got := collectSum(t, reader, "roiconf.config.backups"); got != 1 {
		t.Errorf("config.backups = %d, want 1", got)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)

	m.RecordLLMRequest(context.Background(), "anthropic", "ok", 3.5)

	if got := collectSum(t, reader, "roiconf.llm.requests"); got != 1 {
		t.Errorf("llm.requests = %d, want 1", got)
	}
}
