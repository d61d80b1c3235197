package config

import (
	"context"
	"errors"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/version"
)

type Telemetry struct {
	shutdownFuncs []func(context.Context) error
}

// Shutdown flushes and stops all providers.
func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	for _, fn := range t.shutdownFuncs {
		err = errors.Join(err, fn(ctx))
	}
	t.shutdownFuncs = nil
	if err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}

// SetupTelemetry installs global meter and tracer providers. Data is exported
// via OTLP/gRPC to TelemetryEndpoint or written to stdout if no endpoint is set.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	ret := &Telemetry{}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			attribute.String("service.name", "pylonrace"),
			attribute.String("service.version", version.Version),
		))
	if err != nil {
		return nil, err
	}

	metricExporter, err := newMetricExporter(ctx)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
	)
	ret.shutdownFuncs = append(ret.shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)

	traceExporter, err := newTraceExporter(ctx)
	if err != nil {
		ret.Shutdown()
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	ret.shutdownFuncs = append(ret.shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	if err := otlpruntime.Start(
		otlpruntime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return ret, nil
}

func newMetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	if TelemetryEndpoint == "" {
		return stdoutmetric.New()
	}
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
		otlpmetricgrpc.WithInsecure())
}

func newTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if TelemetryEndpoint == "" {
		return stdouttrace.New()
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(TelemetryEndpoint),
		otlptracegrpc.WithInsecure())
}
