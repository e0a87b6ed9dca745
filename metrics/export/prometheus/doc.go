// Package prometheus exposes netapi dispatch metrics as a Prometheus collector.
//
// [NewPrometheusExporter] wraps an [netapi.Engine]; the exporter implements
// prometheus.Collector and can be registered anywhere, or served directly
// through [PrometheusExporter.Handler]. Counters are named netapi_*_total and
// the single histogram is netapi_dispatch_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
