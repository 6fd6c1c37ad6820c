package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ExporterConfig points a Provider at an OTLP/HTTP collector, generalizing
// the teacher's pkg/observability/mlflow.Config (TrackingURI + exporter
// options) from an MLflow-shaped tracking server to a plain OTLP
// endpoint: the gateway has no experiment/run concept to tag headers
// with, so only the fields that survive that trim remain.
type ExporterConfig struct {
	// Endpoint is the collector's host:port, e.g. "localhost:4318".
	Endpoint string
	// Insecure uses HTTP instead of HTTPS to reach Endpoint.
	Insecure bool
	// ServiceName tags the exported resource. Defaults to "frameflow".
	ServiceName string
}

// Provider owns the process-wide tracer provider backing every
// session.run / tool.attempt span once tracing is enabled.
type Provider struct {
	tp       *sdktrace.TracerProvider
	exporter *otlptrace.Exporter
}

// NewProvider dials cfg.Endpoint and returns a Provider exporting spans
// there in the background. Callers must Shutdown it on process exit to
// flush pending spans.
func NewProvider(ctx context.Context, cfg ExporterConfig) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry: Endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "frameflow"
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return &Provider{tp: tp, exporter: exporter}, nil
}

// Tracer returns the tracer session.Controller and orchestrator.Orchestrator
// should be constructed with once tracing is enabled.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(TracerName)
}

// Shutdown flushes pending spans and tears down the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}
