package otel

import (
	"context"
	"errors"
	"fmt"

	netapi "github.com/MrEthical07/netapi"
	"github.com/MrEthical07/netapi/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// Attribute keys attached to the exported instruments.
const (
	OutcomeKey        = attribute.Key("netapi.outcome")
	SessionEventKey   = attribute.Key("netapi.session.event")
	BucketKey         = attribute.Key("le")
	AuditEventTypeKey = attribute.Key("netapi.audit.event_type")
	AuditStateKey     = attribute.Key("netapi.audit.state")
)

// Instrument names.
const (
	RequestsName       = "netapi.dispatch.requests"
	OutcomesName       = "netapi.dispatch.outcomes"
	LatencyBucketsName = "netapi.dispatch.latency.buckets"
	LatencyCountName   = "netapi.dispatch.latency.count"
	SessionEventsName  = "netapi.session.events"
	DownloadsName      = "netapi.downloads"
	AuditEventsName    = "netapi.audit.events"
)

type metricsSource interface {
	MetricsSnapshot() netapi.MetricsSnapshot
	AuditStats() netapi.AuditStats
}

type labelled struct {
	id    netapi.MetricID
	attrs metric.ObserveOption
}

// OTelExporter publishes dispatch outcomes, session lifecycle, latency buckets,
// and audit delivery as observable instruments. One callback reads the source
// per collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	requests      metric.Int64ObservableCounter
	outcomes      metric.Int64ObservableCounter
	sessionEvents metric.Int64ObservableCounter
	downloads     metric.Int64ObservableCounter
	buckets       metric.Int64ObservableGauge
	count         metric.Int64ObservableGauge
	audit         metric.Int64ObservableCounter

	outcomeSets []labelled
	sessionSets []labelled
	bucketSets  []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter reading from engine.
func NewOTelExporter(meter metric.Meter, engine *netapi.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var err error
	if e.requests, err = meter.Int64ObservableCounter(RequestsName,
		metric.WithDescription("Requests that reached the dispatcher."), metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", RequestsName, err)
	}
	if e.outcomes, err = meter.Int64ObservableCounter(OutcomesName,
		metric.WithDescription("Settled dispatches by outcome: success or the exception code."), metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", OutcomesName, err)
	}
	if e.sessionEvents, err = meter.Int64ObservableCounter(SessionEventsName,
		metric.WithDescription("Session creations, logins, throttled logins, and logouts.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", SessionEventsName, err)
	}
	if e.downloads, err = meter.Int64ObservableCounter(DownloadsName,
		metric.WithDescription("Results streamed as downloads."), metric.WithUnit("{download}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", DownloadsName, err)
	}
	if e.buckets, err = meter.Int64ObservableGauge(LatencyBucketsName,
		metric.WithDescription("Cumulative dispatch latency bucket counts, labelled by upper bound in seconds.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyBucketsName, err)
	}
	if e.count, err = meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Dispatches with a recorded latency.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyCountName, err)
	}
	if e.audit, err = meter.Int64ObservableCounter(AuditEventsName,
		metric.WithDescription("Audit events by type and delivery state.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditEventsName, err)
	}

	for _, def := range internaldefs.OutcomeDefs {
		e.outcomeSets = append(e.outcomeSets, labelled{def.ID, metric.WithAttributes(OutcomeKey.String(def.Outcome))})
	}
	for _, def := range internaldefs.SessionEventDefs {
		e.sessionSets = append(e.sessionSets, labelled{def.ID, metric.WithAttributes(SessionEventKey.String(def.Outcome))})
	}
	for _, le := range internaldefs.HistogramBoundLabels {
		e.bucketSets = append(e.bucketSets, metric.WithAttributes(BucketKey.String(le)))
	}

	e.registration, err = meter.RegisterCallback(e.observe,
		e.requests, e.outcomes, e.sessionEvents, e.downloads, e.buckets, e.count, e.audit)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	o.ObserveInt64(e.requests, int64(snap.Counters[netapi.MetricDispatchTotal]))
	o.ObserveInt64(e.downloads, int64(snap.Counters[netapi.MetricDownload]))
	for _, s := range e.outcomeSets {
		o.ObserveInt64(e.outcomes, int64(snap.Counters[s.id]), s.attrs)
	}
	for _, s := range e.sessionSets {
		o.ObserveInt64(e.sessionEvents, int64(snap.Counters[s.id]), s.attrs)
	}

	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[netapi.MetricDispatchLatency]))
	for i, attrs := range e.bucketSets {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))

	for _, t := range e.source.AuditStats().Types {
		typ := AuditEventTypeKey.String(t.EventType)
		o.ObserveInt64(e.audit, int64(t.Delivered), metric.WithAttributes(typ, AuditStateKey.String("delivered")))
		o.ObserveInt64(e.audit, int64(t.Dropped), metric.WithAttributes(typ, AuditStateKey.String("dropped")))
		o.ObserveInt64(e.audit, int64(t.Failed), metric.WithAttributes(typ, AuditStateKey.String("failed")))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
