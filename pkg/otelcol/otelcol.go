package otelcol

import (
	"context"
	"time"

	"smallbiznis-crm/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs the global tracer provider. Without OTEL.ADDR spans stay in-process (noop export).
var Module = fx.Module("otelcol",
	fx.Provide(
		ProvideTrace,
		ProvideMetric,
	),
	fx.Invoke(func(trace.TracerProvider) {}),
)

func defaultTraceProviderOption(cfg *config.Config) []sdktrace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(cfg.AppVersion),
		semconv.DeploymentEnvironment(cfg.AppEnv),
	))
	if err != nil {
		res = resource.Default()
	}

	return []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
}

// NewExporter dials the collector over gRPC.
func NewExporter(ctx context.Context, addr string) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(addr),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithCompressor("gzip"),
	)

	return otlptrace.New(ctx, client)
}

// NewHTTPExporter posts spans to the collector's OTLP/HTTP endpoint.
func NewHTTPExporter(ctx context.Context, addr string) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(addr),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	)

	return otlptrace.New(ctx, client)
}

func newExporter(ctx context.Context, protocol, addr string) (*otlptrace.Exporter, error) {
	if protocol == "http" {
		return NewHTTPExporter(ctx, addr)
	}
	return NewExporter(ctx, addr)
}

func ProvideTrace(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	opts := defaultTraceProviderOption(cfg)

	if cfg.Otel.Addr != "" {
		exporter, err := newExporter(context.Background(), cfg.Otel.Protocol, cfg.Otel.Addr)
		if err != nil {
			zap.L().Error("failed to create otlp exporter", zap.String("addr", cfg.Otel.Addr), zap.Error(err))
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		zap.L().Info("otlp trace exporter configured",
			zap.String("addr", cfg.Otel.Addr),
			zap.String("protocol", cfg.Otel.Protocol),
		)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// ProvideMetric hands out the global meter provider; application metrics go through prometheus.
func ProvideMetric() metric.MeterProvider {
	return otel.GetMeterProvider()
}
