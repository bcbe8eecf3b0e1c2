// Package internal provides internal implementation for the obsx package.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ProviderOptions holds configuration for the metrics provider.
type ProviderOptions struct {
	ServiceName    string
	ServiceVersion string
	ResourceAttrs  map[string]string
	Global         bool
}

// Provider manages OpenTelemetry metrics provider with Prometheus export.
type Provider struct {
	MeterProvider      *metric.MeterProvider
	prometheusRegistry *promclient.Registry
}

// NewProvider creates a new metrics provider with Prometheus export.
func NewProvider(ctx context.Context, opts ProviderOptions) (*Provider, error) {
	res, err := createResource(ctx, opts)
	if err != nil {
		return nil, err
	}

	mp, promRegistry, err := createMeterProvider(res)
	if err != nil {
		return nil, err
	}

	if opts.Global {
		otel.SetMeterProvider(mp)
	}

	return &Provider{
		MeterProvider:      mp,
		prometheusRegistry: promRegistry,
	}, nil
}

// createResource creates an OpenTelemetry resource with service attributes.
func createResource(ctx context.Context, opts ProviderOptions) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if len(opts.ResourceAttrs) > 0 {
		var attrs []attribute.KeyValue
		for k, v := range opts.ResourceAttrs {
			attrs = append(attrs, attribute.String(k, v))
		}
		res, err = resource.Merge(res, resource.NewWithAttributes(semconv.SchemaURL, attrs...))
		if err != nil {
			return nil, fmt.Errorf("failed to add resource attributes: %w", err)
		}
	}

	return res, nil
}

// createMeterProvider creates a meter provider backed by a private
// Prometheus registry.
func createMeterProvider(res *resource.Resource) (*metric.MeterProvider, *promclient.Registry, error) {
	promRegistry := promclient.NewRegistry()
	promExporter, err := prometheus.New(
		prometheus.WithRegisterer(promRegistry),
		prometheus.WithoutUnits(),
		prometheus.WithoutScopeInfo(),
		prometheus.WithoutCounterSuffixes(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	return mp, promRegistry, nil
}

// PrometheusHandler returns an HTTP handler serving the registry in
// Prometheus text format.
func (p *Provider) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(p.prometheusRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Shutdown flushes and stops the meter provider. It waits at most five
// seconds regardless of ctx.
func (p *Provider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.MeterProvider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
