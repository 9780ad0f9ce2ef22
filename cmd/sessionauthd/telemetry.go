package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/config"
	otelexport "github.com/MrEthical07/sessionauth/metrics/export/otel"
)

const meterName = "github.com/MrEthical07/sessionauth"

// startOtelMetrics pushes engine metrics to the OTLP/HTTP endpoint named by
// the OTEL_EXPORTER_OTLP_* variables. The returned func flushes and stops.
func startOtelMetrics(ctx context.Context, cfg *config.Config, engine *sessionauth.Engine, log *slog.Logger) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.OtelServiceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OtelMetricsInterval))
	shutdown, err := instrumentEngine(reader, res, engine)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	log.Info("otel metrics enabled", "interval", cfg.OtelMetricsInterval.String())
	return shutdown, nil
}

// instrumentEngine registers the engine's instruments on a provider that
// reads through reader.
func instrumentEngine(reader sdkmetric.Reader, res *resource.Resource, engine *sessionauth.Engine) (func(context.Context) error, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	exp, err := otelexport.NewExporter(provider.Meter(meterName), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to register otel instruments: %w", err)
	}

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return errors.Join(provider.Shutdown(ctx), exp.Close())
	}, nil
}
