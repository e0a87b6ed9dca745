// Package otel binds netapi dispatch metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers a handful of observable instruments and labels
// them with attributes instead of minting one instrument per counter:
//
//   - netapi.dispatch.outcomes, by netapi.outcome ("success" or an exception code)
//   - netapi.session.events, by netapi.session.event
//   - netapi.dispatch.latency.buckets, by le
//   - netapi.audit.events, by netapi.audit.event_type and netapi.audit.state
//
// A single callback reads [netapi.Engine.MetricsSnapshot] and
// [netapi.Engine.AuditStats] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
