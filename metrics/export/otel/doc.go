// Package otel provides OpenTelemetry metric exporter bindings for the
// gateway counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per gateway metric.
// A single callback reads the gateway's MetricsSnapshot on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate gateway state.
package otel
