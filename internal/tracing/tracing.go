// Package tracing sets up the OpenTelemetry tracer provider. Spans are
// written as JSON to a file because the terminal belongs to the UI.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName names the tracer and the service resource.
const ServiceName = "ttop"

// DefaultOutput is the span file used when none is given.
const DefaultOutput = "ttop-trace.json"

// Provider is a tracer provider plus its shutdown.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// TracerProvider returns the underlying provider, e.g. for otelhttp.
func (p *Provider) TracerProvider() trace.TracerProvider { return p.tp }

// Tracer returns the ttop tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tp.Tracer(ServiceName) }

// Shutdown flushes pending spans and closes the output.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	return &Provider{tp: noop.NewTracerProvider()}
}

// New exports spans to w.
func New(w io.Writer) (*Provider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("tracing: exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// Open creates path and exports spans to it. The file is closed on
// Shutdown.
func Open(path string) (*Provider, error) {
	if path == "" {
		path = DefaultOutput
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracing: open %s: %w", path, err)
	}
	p, err := New(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	flush := p.shutdown
	p.shutdown = func(ctx context.Context) error {
		return errors.Join(flush(ctx), f.Close())
	}
	return p, nil
}
