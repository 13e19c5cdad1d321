// Package exporters builds the trace exporters the engine can ship spans to.
package exporters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultTimeout = 10 * time.Second

// New builds a span exporter by type: "otlp-grpc", "otlp-http", or anything
// else for the no-op console exporter.
func New(ctx context.Context, exporterType, endpoint string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case "otlp-grpc":
		return newGRPCExporter(ctx, endpoint)
	case "otlp-http":
		return newHTTPExporter(ctx, endpoint)
	default:
		return &ConsoleExporter{}, nil
	}
}

// ConsoleExporter is the no-op exporter used in local development and tests.
type ConsoleExporter struct{}

func (c *ConsoleExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (c *ConsoleExporter) Shutdown(ctx context.Context) error {
	return nil
}

// newGRPCExporter creates a gRPC-based OTLP exporter. TLS is disabled; the
// collector is expected to sit inside the mesh.
func newGRPCExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(defaultTimeout),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		otlptracegrpc.WithInsecure(),
	)
}

// newHTTPExporter creates an HTTP-based OTLP exporter
func newHTTPExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithTimeout(defaultTimeout),
		otlptracehttp.WithInsecure(),
	)
}
