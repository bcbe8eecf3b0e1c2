// Package obsx exports configuration metrics to Prometheus.
//
// Overview:
//   - Responsibility: Bootstrap an OpenTelemetry meter provider with Prometheus export
//   - Key Types: Options for configuration, Provider for managing lifecycle
//   - Concurrency Model: Provider is safe for concurrent use
//   - Error Semantics: NewProvider and registrations return errors for initialization failures
//   - Performance Notes: Gauges are computed on scrape; counters are recorded by configx
//
// Usage:
//
//	provider, err := obsx.NewProvider(ctx, obsx.Options{ServiceName: "scf"})
//	mgr, err := configx.NewManager(configx.ManagerConfig{
//	  Name:          "app",
//	  Sources:       sources,
//	  MeterProvider: provider.MeterProvider(),
//	})
//	err = provider.RegisterManagerMetrics(mgr)
//	defer provider.Shutdown(ctx)
package obsx

import (
	"context"
	"database/sql"
	"net/http"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/obsx/internal"
)

const meterName = "go.eggybyte.com/scf/obsx"

// Options holds configuration for the metrics provider.
type Options struct {
	ServiceName    string            `validate:"notblank"` // Service name for metrics
	ServiceVersion string            // Service version
	ResourceAttrs  map[string]string // Additional resource attributes
	Global         bool              // Install as the global otel meter provider
}

// Provider manages an OpenTelemetry meter provider with Prometheus export.
// The provider must be shut down when no longer needed.
type Provider struct {
	impl  *internal.Provider
	meter api.Meter
}

// NewProvider creates a new metrics provider with Prometheus export.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	if err := validate.Struct("obsx.NewProvider", opts); err != nil {
		return nil, err
	}
	impl, err := internal.NewProvider(ctx, internal.ProviderOptions{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.ServiceVersion,
		ResourceAttrs:  opts.ResourceAttrs,
		Global:         opts.Global,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "obsx.NewProvider", err)
	}
	return &Provider{impl: impl, meter: impl.MeterProvider.Meter(meterName)}, nil
}

// MeterProvider returns the OpenTelemetry meter provider. Pass it as
// configx.ManagerConfig.MeterProvider.
func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.impl.MeterProvider
}

// PrometheusHandler returns an HTTP handler for the Prometheus metrics endpoint.
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", provider.PrometheusHandler())
func (p *Provider) PrometheusHandler() http.Handler {
	return p.impl.PrometheusHandler()
}

// RegisterManagerMetrics publishes property and source counts for m.
func (p *Provider) RegisterManagerMetrics(m *configx.Manager) error {
	if m == nil {
		return errors.New(errors.CodeInvalidArgument, "manager is required")
	}
	_, err := internal.RegisterManagerMetrics(p.meter, m.Name(), func() (int, int) {
		return len(m.Properties()), len(m.Config().Sources)
	})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "obsx.RegisterManagerMetrics", err)
	}
	return nil
}

// RegisterStoreMetrics publishes connection pool statistics for the
// database behind a table source, e.g. a *gorm.DB.
func (p *Provider) RegisterStoreMetrics(name string, db interface{ DB() (*sql.DB, error) }) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "obsx.RegisterStoreMetrics", err)
	}
	if _, err := internal.RegisterPoolMetrics(p.meter, name, sqlDB); err != nil {
		return errors.Wrap(errors.CodeInternal, "obsx.RegisterStoreMetrics", err)
	}
	return nil
}

// Shutdown gracefully shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.impl.Shutdown(ctx)
}
