package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Options selects the span exporter. Exporter is one of none, stdout, otlp.
// The otlp exporter reads the standard OTEL_EXPORTER_OTLP_* variables.
type Options struct {
	Exporter    string
	ServiceName string
	Writer      io.Writer
}

// Setup installs a global tracer provider. With Exporter "none" the global
// no-op provider stays in place and the returned ShutdownFunc does nothing.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	var exp sdktrace.SpanExporter
	var err error

	switch opts.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		stdoutOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if opts.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exp, err = stdouttrace.New(stdoutOpts...)
	case "otlp":
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", opts.Exporter, err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
