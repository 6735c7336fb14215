// Package prometheus renders authkit metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [authkit.Service] and exposes an
// [net/http.Handler] that renders all authkit counters and histograms without
// pulling in the client library. Counter names are prefixed authkit_*_total;
// the single histogram is authkit_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the
//     Handler.
//   - Mutate service state.
package prometheus
