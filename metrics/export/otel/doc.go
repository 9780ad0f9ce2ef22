// Package otel publishes sessionauth metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter, a
// bucket gauge keyed by "le" and a count gauge per latency histogram, and an
// audit counter keyed by "outcome". A single callback reads the engine
// snapshot on each collection cycle.
//
// The caller owns the MeterProvider and its readers; the exporter never
// mutates engine state.
package otel
