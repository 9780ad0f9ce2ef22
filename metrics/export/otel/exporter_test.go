package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/userstore"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessionauth.MetricsSnapshot
	audit    sessionauth.AuditStats
}

func (f *fakeSource) MetricsSnapshot() sessionauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessionauth.MetricsSnapshot{
		Counters:   make(map[sessionauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessionauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditStats() sessionauth.AuditStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.audit
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

func dataPoints(t *testing.T, rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints
			case metricdata.Gauge[int64]:
				return data.DataPoints
			default:
				t.Fatalf("%s has unexpected data type %T", name, m.Data)
			}
		}
	}
	return nil
}

// value returns the point of name whose attribute key equals val, or the
// only point when key is empty.
func value(t *testing.T, rm metricdata.ResourceMetrics, name, key, val string) int64 {
	t.Helper()
	for _, dp := range dataPoints(t, rm, name) {
		if key == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == val {
			return dp.Value
		}
	}
	t.Fatalf("no point for %s{%s=%q}", name, key, val)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{
		snapshot: sessionauth.MetricsSnapshot{
			Counters: map[sessionauth.MetricID]uint64{
				sessionauth.MetricLoginSuccess: 3,
			},
			Histograms: map[sessionauth.MetricID][]uint64{
				sessionauth.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		audit: sessionauth.AuditStats{Dropped: 1, Delivered: 9, SinkPanics: 2},
	}

	exp, err := NewExporterFromSource(provider.Meter("sessionauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	rm := collect(t, reader)

	if got := value(t, rm, "sessionauth_login_success_total", "", ""); got != 3 {
		t.Fatalf("login success = %d", got)
	}
	if got := value(t, rm, "sessionauth_login_latency_seconds_bucket", "le", "0.025"); got != 3 {
		t.Fatalf("cumulative bucket = %d", got)
	}
	if got := value(t, rm, "sessionauth_login_latency_seconds_bucket", "le", "+Inf"); got != 8 {
		t.Fatalf("+Inf bucket = %d", got)
	}
	if got := len(dataPoints(t, rm, "sessionauth_login_latency_seconds_bucket")); got != 8 {
		t.Fatalf("expected 8 bucket points, got %d", got)
	}
	if got := value(t, rm, "sessionauth_login_latency_seconds_count", "", ""); got != 8 {
		t.Fatalf("count = %d", got)
	}
	for outcome, want := range map[string]int64{"dropped": 1, "delivered": 9, "sink_panic": 2} {
		if got := value(t, rm, "sessionauth_audit_events_total", "outcome", outcome); got != want {
			t.Fatalf("audit %s = %d, want %d", outcome, got, want)
		}
	}
}

func TestExporterSkipsDisabledEngineMetrics(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{audit: sessionauth.AuditStats{Delivered: 4}}
	exp, err := NewExporterFromSource(provider.Meter("sessionauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	if pts := dataPoints(t, rm, "sessionauth_login_success_total"); len(pts) != 0 {
		t.Fatalf("disabled metrics produced %d points", len(pts))
	}
	if got := value(t, rm, "sessionauth_audit_events_total", "outcome", "delivered"); got != 4 {
		t.Fatalf("audit delivered = %d", got)
	}
}

func TestExporterStopsAfterClose(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{audit: sessionauth.AuditStats{Delivered: 1}}
	exp, err := NewExporterFromSource(provider.Meter("sessionauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rm := collect(t, reader)
	if pts := dataPoints(t, rm, "sessionauth_audit_events_total"); len(pts) != 0 {
		t.Fatalf("closed exporter still reported %d points", len(pts))
	}
}

func TestExporterReadsEngine(t *testing.T) {
	reader, provider := newMeter()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := sessionauth.DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := sessionauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(userstore.NewMemory()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	exp, err := NewExporter(provider.Meter("sessionauth-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	if _, err := engine.Login(context.Background(), "ghost@example.com", "whatever-pw"); err == nil {
		t.Fatal("expected login to fail")
	}

	rm := collect(t, reader)
	if got := value(t, rm, "sessionauth_login_failure_total", "", ""); got != 1 {
		t.Fatalf("login failures = %d", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("sessionauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("sessionauth-test")

	src := &fakeSource{
		snapshot: sessionauth.MetricsSnapshot{
			Counters: map[sessionauth.MetricID]uint64{
				sessionauth.MetricLoginSuccess: 1,
			},
			Histograms: map[sessionauth.MetricID][]uint64{
				sessionauth.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessionauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
