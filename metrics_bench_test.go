package netapi

import (
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricDispatchTotal)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricDispatchTotal)
	}
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricDispatchLatency, d)
		}
	})
}

// Mirrors the counters touched by one successful dispatch and one failure.
var dispatchHotMetricIDs = [...]MetricID{
	MetricDispatchTotal,
	MetricDispatchSuccess,
	MetricDispatchTotal,
	MetricParametersError,
	MetricSessionCreated,
	MetricNotAllowed,
}

func BenchmarkMetricsIncDispatchMixParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(dispatchHotMetricIDs[idx])
			idx++
			if idx == len(dispatchHotMetricIDs) {
				idx = 0
			}
		}
	})
}
