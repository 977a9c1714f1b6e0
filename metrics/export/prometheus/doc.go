// Package prometheus renders authcore metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an engine and exposes an [net/http.Handler]
// serving all counters and the validation latency histogram. Counter names
// are prefixed authcore_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
