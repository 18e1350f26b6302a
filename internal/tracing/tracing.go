// Package tracing sets up the OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/supportdesk/internal/config"
)

// TracerName is the instrumentation scope used by the router and dispatcher.
const TracerName = "supportdesk"

// Tracer returns the tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Setup installs an OTLP/HTTP tracer provider when telemetry is enabled.
// The returned function flushes pending spans; it is safe to call when
// telemetry is disabled.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = TracerName
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("otel tracing enabled", "endpoint", cfg.Endpoint, "service", name)

	return tp.Shutdown, nil
}
