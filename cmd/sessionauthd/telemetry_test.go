package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/userstore"
)

func TestInstrumentEngineExportsThroughReader(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := sessionauth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	engine, err := sessionauth.New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(userstore.NewMemory()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	shutdown, err := instrumentEngine(reader, resource.Empty(), engine)
	if err != nil {
		t.Fatalf("instrumentEngine failed: %v", err)
	}

	_, _ = engine.Login(context.Background(), "ghost@example.com", "whatever-pw")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) != 1 || rm.ScopeMetrics[0].Scope.Name != meterName {
		t.Fatalf("unexpected scopes %+v", rm.ScopeMetrics)
	}

	found := false
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "sessionauth_login_failure_total" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
			t.Fatalf("unexpected login failure data %+v", m.Data)
		}
		found = true
	}
	if !found {
		t.Fatal("login failure counter not exported")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if err := reader.Collect(context.Background(), &rm); err == nil {
		t.Fatal("reader must be shut down with the provider")
	}
}
