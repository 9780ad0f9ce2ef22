// Package prometheus exposes sessionauth metrics as a prometheus.Collector.
//
// [NewCollector] reads [sessionauth.Engine.MetricsSnapshot] on each scrape.
// Counter names are sessionauth_*_total; the single histogram is
// sessionauth_login_latency_seconds. [Handler] mounts the collector on a
// private registry.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
