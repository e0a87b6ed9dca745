package otel

import (
	"context"
	"sync"
	"testing"

	netapi "github.com/MrEthical07/netapi"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot netapi.MetricsSnapshot
	audit    netapi.AuditStats
}

func (f *fakeSource) MetricsSnapshot() netapi.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := netapi.MetricsSnapshot{
		Counters:   make(map[netapi.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[netapi.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditStats() netapi.AuditStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.audit
}

func collect(t *testing.T, src metricsSource) map[string]metricdata.Metrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exp, err := NewOTelExporterFromSource(provider.Meter("netapi-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumByAttr returns the data points of a counter keyed by one attribute value.
func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestExporterLabelsDispatchOutcomes(t *testing.T) {
	src := &fakeSource{snapshot: netapi.MetricsSnapshot{
		Counters: map[netapi.MetricID]uint64{
			netapi.MetricDispatchTotal:   7,
			netapi.MetricDispatchSuccess: 4,
			netapi.MetricNotAllowed:      2,
			netapi.MetricIOError:         1,
			netapi.MetricDownload:        1,
		},
	}}
	got := collect(t, src)

	requests := sumByAttr(t, got[RequestsName], OutcomeKey)
	if requests[""] != 7 {
		t.Fatalf("expected 7 requests, got %v", requests)
	}

	outcomes := sumByAttr(t, got[OutcomesName], OutcomeKey)
	if outcomes["success"] != 4 || outcomes["NotAllowed"] != 2 || outcomes["IOError"] != 1 {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
	var settled int64
	for _, v := range outcomes {
		settled += v
	}
	if settled != 7 {
		t.Fatalf("outcomes must add up to requests, got %d", settled)
	}
	if dl := sumByAttr(t, got[DownloadsName], OutcomeKey); dl[""] != 1 {
		t.Fatalf("unexpected downloads %v", dl)
	}
}

func TestExporterLabelsSessionEvents(t *testing.T) {
	src := &fakeSource{snapshot: netapi.MetricsSnapshot{
		Counters: map[netapi.MetricID]uint64{
			netapi.MetricSessionCreated:   5,
			netapi.MetricLoginSuccess:     3,
			netapi.MetricLoginRateLimited: 1,
			netapi.MetricLogout:           2,
		},
	}}
	events := sumByAttr(t, collect(t, src)[SessionEventsName], SessionEventKey)
	want := map[string]int64{"created": 5, "login": 3, "login_rate_limited": 1, "logout": 2}
	for k, v := range want {
		if events[k] != v {
			t.Fatalf("%s: expected %d, got %d (%v)", k, v, events[k], events)
		}
	}
}

func TestExporterPublishesCumulativeLatencyBuckets(t *testing.T) {
	src := &fakeSource{snapshot: netapi.MetricsSnapshot{
		Histograms: map[netapi.MetricID][]uint64{
			netapi.MetricDispatchLatency: {2, 1, 0, 0, 0, 0, 0, 3},
		},
	}}
	got := collect(t, src)

	gauge, ok := got[LatencyBucketsName].Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected Gauge[int64], got %T", got[LatencyBucketsName].Data)
	}
	buckets := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(BucketKey)
		buckets[v.AsString()] = dp.Value
	}
	if buckets["0.005"] != 2 || buckets["0.01"] != 3 || buckets["0.5"] != 3 || buckets["+Inf"] != 6 {
		t.Fatalf("unexpected buckets %v", buckets)
	}

	count := got[LatencyCountName].Data.(metricdata.Gauge[int64])
	if len(count.DataPoints) != 1 || count.DataPoints[0].Value != 6 {
		t.Fatalf("unexpected count %+v", count)
	}
}

func TestExporterReportsAuditDelivery(t *testing.T) {
	src := &fakeSource{
		snapshot: netapi.MetricsSnapshot{},
		audit: netapi.AuditStats{Types: []netapi.AuditTypeStats{
			{EventType: "dispatch.denied", Delivered: 5, Dropped: 2},
			{EventType: "dispatch.login", Delivered: 1, Failed: 1},
		}},
	}
	m := collect(t, src)[AuditEventsName]
	sum := m.Data.(metricdata.Sum[int64])

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		typ, _ := dp.Attributes.Value(AuditEventTypeKey)
		state, _ := dp.Attributes.Value(AuditStateKey)
		got[typ.AsString()+"/"+state.AsString()] = dp.Value
	}
	if got["dispatch.denied/delivered"] != 5 || got["dispatch.denied/dropped"] != 2 || got["dispatch.login/failed"] != 1 {
		t.Fatalf("unexpected audit points %v", got)
	}
}

func TestExporterRejectsMissingInputs(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	if _, err := NewOTelExporterFromSource(provider.Meter("netapi-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(provider.Meter("netapi-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	src := &fakeSource{snapshot: netapi.MetricsSnapshot{
		Counters: map[netapi.MetricID]uint64{netapi.MetricDispatchTotal: 1},
	}}

	exp, err := NewOTelExporterFromSource(provider.Meter("netapi-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[netapi.MetricDispatchTotal] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
