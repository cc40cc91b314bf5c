package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	EXPORTER_NONE   = "none"
	EXPORTER_STDOUT = "stdout"
	EXPORTER_OTLP   = "otlp"
)

var ErrUnknownExporter = errors.New("unknown otel exporter")

type Configuration struct {
	Exporter string
	// Endpoint is the host:port of the otlp http collector.
	Endpoint string
}

// SetupOTelSDK bootstraps the OpenTelemetry pipeline. With the none exporter the
// global no-op tracer provider stays in place.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func SetupOTelSDK(ctx context.Context, c Configuration) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	// The errors from the calls are joined.
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	if c.Exporter == "" || c.Exporter == EXPORTER_NONE {
		return shutdown, nil
	}

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTracerProvider(ctx, c)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	return shutdown, nil
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceExporter(ctx context.Context, c Configuration) (trace.SpanExporter, error) {
	switch c.Exporter {
	case EXPORTER_OTLP:
		options := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if c.Endpoint != "" {
			options = append(options, otlptracehttp.WithEndpoint(c.Endpoint))
		}
		return otlptracehttp.New(ctx, options...)
	case EXPORTER_STDOUT:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return nil, errors.Join(ErrUnknownExporter, errors.New(c.Exporter))
}

func newTracerProvider(ctx context.Context, c Configuration) (*trace.TracerProvider, error) {
	traceExporter, err := newTraceExporter(ctx, c)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName("blobshift"),
		),
		resource.WithFromEnv(),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		slog.Warn("could not create complete resource for OpenTelemetry", "error", err)
	} else if err != nil {
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	return tracerProvider, nil
}
