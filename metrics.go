package netapi

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one dispatch counter.
type MetricID uint16

const (
	// MetricDispatchTotal counts every request reaching the dispatcher.
	MetricDispatchTotal MetricID = iota
	// MetricDispatchSuccess counts requests answered with a payload or download.
	MetricDispatchSuccess
	MetricRoutingError
	MetricUnknownEndpoint
	MetricParametersError
	MetricInvalidPropertyFormat
	MetricNotAllowed
	MetricInstantiationError
	MetricApplicationError
	MetricSerializationError
	MetricIOError
	MetricIncompatibleInterface
	// MetricLoginSuccess counts login operations that attached a profile.
	MetricLoginSuccess
	// MetricLoginRateLimited counts login calls refused by the failed-login throttle.
	MetricLoginRateLimited
	MetricLogout
	// MetricSessionCreated counts sessions persisted for the first time.
	MetricSessionCreated
	// MetricDownload counts streamed downloads.
	MetricDownload
	// MetricDispatchLatency is the only histogram-backed metric.
	MetricDispatchLatency
	metricIDCount
)

var codeMetrics = map[ErrorCode]MetricID{
	CodeRoutingError:          MetricRoutingError,
	CodeUnknownEndpoint:       MetricUnknownEndpoint,
	CodeParametersError:       MetricParametersError,
	CodeInvalidPropertyFormat: MetricInvalidPropertyFormat,
	CodeNotAllowed:            MetricNotAllowed,
	CodeInstantiationError:    MetricInstantiationError,
	CodeApplicationError:      MetricApplicationError,
	CodeSerializationError:    MetricSerializationError,
	CodeIOError:               MetricIOError,
	CodeIncompatibleInterface: MetricIncompatibleInterface,
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricDispatchLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricDispatchLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricDispatchLatency].buckets[i])
		}
		s.Histograms[MetricDispatchLatency] = buckets
	}

	return s
}

// HistogramBounds returns the inclusive upper bounds of the first
// histBucketCount-1 latency buckets; the last bucket is unbounded.
func HistogramBounds() []time.Duration {
	return []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
