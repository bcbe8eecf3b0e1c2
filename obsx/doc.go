// Package obsx provides Prometheus-based metrics for configuration managers.
//
// # Overview
//
// obsx constructs an OpenTelemetry meter provider with Prometheus export.
// Handing its MeterProvider to configx.NewManager exposes the manager's
// resolution, source error, filter rejection and change counters on the
// /metrics endpoint, next to gauges registered here.
//
// # Features
//
//   - Meter provider with Prometheus export only (no remote push)
//   - Manager gauges for property and source counts
//   - Connection pool gauges for database-backed sources
//   - Graceful shutdown with bounded timeouts
//
// # Usage
//
//	provider, err := obsx.NewProvider(ctx, obsx.Options{ServiceName: "scf"})
//	if err != nil { panic(err) }
//	defer provider.Shutdown(ctx)
//
//	http.Handle("/metrics", provider.PrometheusHandler())
//
// # Layer
//
// obsx belongs to Layer 3 (L3) and depends on configx.
//
// # Stability
//
// Stable since v0.1.0.
package obsx
