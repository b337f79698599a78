// Package prometheus renders gateway metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a gateway and exposes an [http.Handler]
// serving every counter under the authgate_*_total prefix.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate gateway state.
package prometheus
