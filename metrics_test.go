package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshFailure)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success: got %d want 2", got)
	}
	if got := m.Value(MetricRefreshFailure); got != 1 {
		t.Fatalf("refresh failure: got %d want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter: got %d want 0", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics incremented: got %d", got)
	}

	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", s)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil metrics: got %d", got)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricValidateLatency, 2*time.Millisecond)
	m.Observe(MetricValidateLatency, 30*time.Millisecond)
	m.Observe(MetricValidateLatency, time.Second)

	s := m.Snapshot()
	buckets, ok := s.Histograms[MetricValidateLatency]
	if !ok {
		t.Fatal("expected a latency histogram in the snapshot")
	}
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count: got %d want %d", len(buckets), histBucketCount)
	}

	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket spread: %v", buckets)
	}

	// Only the latency metric carries a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if got := m.Snapshot().Histograms[MetricLoginSuccess]; got != nil {
		t.Fatalf("counter metric grew a histogram: %v", got)
	}
}

func TestMetricsHistogramDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)

	if len(m.Snapshot().Histograms) != 0 {
		t.Fatal("latency histogram must be opt-in")
	}
}

func TestBucketIndex(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{90 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}

	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v): got %d want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("concurrent increments lost: got %d want %d", got, workers*perWorker)
	}
}
