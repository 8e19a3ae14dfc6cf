// Package observe provides observability primitives for roiconf:
// OpenTelemetry metrics with a Prometheus exporter bridge so the gateway can
// be scraped via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all roiconf metrics.
const meterName = "github.com/mwaldrop/roiconf"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ToolDuration tracks MCP tool execution latency.
	ToolDuration metric.Float64Histogram

	// ConfigWrites counts confirmed writes of the config document.
	ConfigWrites metric.Int64Counter

	// BackupsCreated counts backup snapshots taken before writes.
	BackupsCreated metric.Int64Counter

	// LLMRequests counts batch-updater completion calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// LLMDuration tracks batch-updater completion latency.
	LLMDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Tool
// calls are dominated by file I/O; LLM calls by the remote API.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolCalls, err = m.Int64Counter("roiconf.tool.calls",
		metric.WithDescription("Total MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("roiconf.tool.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConfigWrites, err = m.Int64Counter("roiconf.config.writes",
		metric.WithDescription("Total confirmed writes of the config document."),
	); err != nil {
		return nil, err
	}
	if met.BackupsCreated, err = m.Int64Counter("roiconf.config.backups",
		metric.WithDescription("Total backup snapshots taken before writes."),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("roiconf.llm.requests",
		metric.WithDescription("Total batch-updater LLM requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("roiconf.llm.duration",
		metric.WithDescription("Latency of batch-updater LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordToolCall records a tool invocation with its duration in seconds.
// status is "ok" or "error".
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, seconds, attrs)
}

// RecordWrite records one confirmed config write, and the backup taken for
// it when backedUp is true.
func (m *Metrics) RecordWrite(ctx context.Context, backedUp bool) {
	m.ConfigWrites.Add(ctx, 1)
	if backedUp {
		m.BackupsCreated.Add(ctx, 1)
	}
}

// RecordLLMRequest records a batch-updater completion call with its duration
// in seconds. status is "ok" or "error".
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.LLMRequests.Add(ctx, 1, attrs)
	m.LLMDuration.Record(ctx, seconds, attrs)
}
