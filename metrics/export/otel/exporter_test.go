package otel

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	authcore "github.com/squeezyhq/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	return f.snapshot
}

func (f *fakeSource) AuditDropped() uint64 {
	return f.dropped
}

func populatedSource() *fakeSource {
	return &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 7,
				authcore.MetricLoginFailure: 2,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {3, 1, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	values := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range data.DataPoints {
					values[m.Name] = point.Value
				}
			case metricdata.Gauge[int64]:
				for _, point := range data.DataPoints {
					values[m.Name] = point.Value
				}
			}
		}
	}
	return values
}

func TestExporterObservesCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewOTelExporterFromSource(provider.Meter("authcore-test"), populatedSource())
	if err != nil {
		t.Fatalf("failed to build exporter: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	values := collect(t, reader)

	cases := map[string]int64{
		"authcore_login_success_total": 7,
		"authcore_login_failure_total": 2,
		"authcore_logout_total":        0,
		"authcore_audit_dropped_total": 4,
	}
	for name, want := range cases {
		if got, ok := values[name]; !ok || got != want {
			t.Fatalf("%s: got %d (present=%v) want %d", name, got, ok, want)
		}
	}
}

func TestExporterObservesHistogramBuckets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewOTelExporterFromSource(provider.Meter("authcore-test"), populatedSource())
	if err != nil {
		t.Fatalf("failed to build exporter: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	values := collect(t, reader)

	cases := map[string]int64{
		"authcore_validate_latency_seconds_bucket_le_0_005": 3,
		"authcore_validate_latency_seconds_bucket_le_0_01":  4,
		"authcore_validate_latency_seconds_bucket_le_inf":   5,
		"authcore_validate_latency_seconds_count":           5,
	}
	for name, want := range cases {
		if got, ok := values[name]; !ok || got != want {
			t.Fatalf("%s: got %d (present=%v) want %d", name, got, ok, want)
		}
	}
}

func TestExporterTracksSourceChanges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := populatedSource()
	exporter, err := NewOTelExporterFromSource(provider.Meter("authcore-test"), source)
	if err != nil {
		t.Fatalf("failed to build exporter: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	if got := collect(t, reader)["authcore_login_success_total"]; got != 7 {
		t.Fatalf("first collect: got %d want 7", got)
	}

	source.snapshot.Counters[authcore.MetricLoginSuccess] = 12
	if got := collect(t, reader)["authcore_login_success_total"]; got != 12 {
		t.Fatalf("second collect: got %d want 12", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if _, err := NewOTelExporterFromSource(nil, populatedSource()); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(provider.Meter("authcore-test"), nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterCloseIsIdempotent(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewOTelExporterFromSource(provider.Meter("authcore-test"), populatedSource())
	if err != nil {
		t.Fatalf("failed to build exporter: %v", err)
	}

	if err := exporter.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("repeated close failed: %v", err)
	}

	var nilExporter *OTelExporter
	if err := nilExporter.Close(); err != nil {
		t.Fatalf("nil close failed: %v", err)
	}
}
