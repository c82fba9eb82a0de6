package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/commitraider/pkg/version"
)

// EndpointEnv is consulted when Options.Endpoint is empty.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Options describes the scan a tracer provider is set up for.
type Options struct {
	// Endpoint is an OTLP/HTTP URL such as http://localhost:4318.
	Endpoint string
	// ScanID and Profile are attached to every span as resource attributes.
	ScanID  string
	Profile string
	// Spans are pretty-printed to Writer when no endpoint is configured.
	// Nil drops them.
	Writer io.Writer
}

// Init installs the global tracer provider for one scan and returns its
// shutdown func, which flushes pending spans.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	res, err := scanResource(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

func scanResource(opts Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(version.AppName),
		semconv.ServiceVersion(version.Current),
	}
	if opts.ScanID != "" {
		attrs = append(attrs, attribute.String("commitraider.scan_id", opts.ScanID))
	}
	if opts.Profile != "" {
		attrs = append(attrs, attribute.String("commitraider.pattern_profile", opts.Profile))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv(EndpointEnv)
	}
	if endpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exp, nil
	}

	w := opts.Writer
	if w == nil {
		w = io.Discard
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	return exp, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
