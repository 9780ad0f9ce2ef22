package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() sessionauth.MetricsSnapshot
	AuditStats() sessionauth.AuditStats
}

// latency is one engine histogram flattened into a cumulative bucket gauge
// keyed by "le" plus a sample count gauge.
type latency struct {
	id      sessionauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

var (
	outcomeDropped   = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "dropped")))
	outcomeDelivered = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "delivered")))
	outcomePanicked  = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "sink_panic")))
)

// Exporter observes the engine once per collection cycle.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	counters map[sessionauth.MetricID]metric.Int64ObservableCounter
	latency  []latency
	le       [internaldefs.BucketCount]metric.MeasurementOption
	audit    metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *sessionauth.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[sessionauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for i, label := range internaldefs.BucketLabels() {
		e.le[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", label)))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket gauge for %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("failed to create count gauge for %s: %w", def.Name, err)
		}
		e.latency = append(e.latency, latency{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	audit, err := meter.Int64ObservableCounter(internaldefs.AuditEventsName,
		metric.WithDescription(internaldefs.AuditEventsHelp))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit counter: %w", err)
	}
	e.audit = audit
	observables = append(observables, audit)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

// observe reports nothing for engine metrics while they are disabled; audit
// outcomes are always reported.
func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 || len(snapshot.Histograms) > 0 {
		for id, c := range e.counters {
			o.ObserveInt64(c, int64(snapshot.Counters[id]))
		}
		for _, h := range e.latency {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
			for i, n := range cumulative {
				o.ObserveInt64(h.buckets, int64(n), e.le[i])
			}
			o.ObserveInt64(h.count, int64(cumulative[internaldefs.BucketCount-1]))
		}
	}

	stats := e.source.AuditStats()
	o.ObserveInt64(e.audit, int64(stats.Dropped), outcomeDropped)
	o.ObserveInt64(e.audit, int64(stats.Delivered), outcomeDelivered)
	o.ObserveInt64(e.audit, int64(stats.SinkPanics), outcomePanicked)
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
