// Package runtimex provides service lifecycle management and the
// asynchronous task executor used for change notifications.
//
// Overview:
//   - Responsibility: Start and stop services, serve health and metrics endpoints, run notification tasks
//   - Key Types: Service interface, Options, Endpoint, Executor, HealthChecker
//   - Concurrency Model: Services start and stop concurrently; the executor is a fixed worker pool
//   - Error Semantics: Start/Stop methods return errors for failure cases; task panics are logged
//   - Performance Notes: A full executor queue runs the task on the caller instead of blocking
//
// Usage:
//
//	exec, _ := runtimex.NewExecutor(runtimex.ExecutorOptions{Workers: 4, Logger: logger})
//	err := runtimex.Run(ctx, []runtimex.Service{exec, watcher}, runtimex.Options{
//	  Logger:         logger,
//	  Health:         &runtimex.Endpoint{Addr: ":8081"},
//	  Metrics:        &runtimex.Endpoint{Addr: ":9091"},
//	  MetricsHandler: provider.PrometheusHandler(),
//	})
package runtimex

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/runtimex/internal"
)

// Service defines the interface for services that can be started and stopped.
// Services must be safe for concurrent use and handle context cancellation.
type Service interface {
	// Start begins the service operation.
	// The context should be honored for cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service.
	// The context should be honored for shutdown timeout.
	Stop(ctx context.Context) error
}

// Endpoint represents a network endpoint with an address.
type Endpoint struct {
	Addr string // Network address (e.g., ":8081", "localhost:9091")
}

// HealthChecker is a named readiness check served on the health endpoint.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

type healthFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (h healthFunc) Name() string                    { return h.name }
func (h healthFunc) Check(ctx context.Context) error { return h.fn(ctx) }

// HealthCheckerFunc adapts fn to a HealthChecker.
func HealthCheckerFunc(name string, fn func(ctx context.Context) error) HealthChecker {
	return healthFunc{name: name, fn: fn}
}

// Options holds configuration for the runtime.
type Options struct {
	Logger          log.Logger      // Logger for runtime operations
	Health          *Endpoint       // Health check endpoint (optional)
	HealthCheckers  []HealthChecker // Checks run by the health endpoint
	Metrics         *Endpoint       // Metrics endpoint (optional)
	MetricsHandler  http.Handler    // Handler served on the metrics endpoint
	ShutdownTimeout time.Duration   // Graceful shutdown timeout
}

// HealthHandler answers 200 when every checker passes and 503 with the
// first failure otherwise.
func HealthHandler(checkers ...HealthChecker) http.Handler {
	health := &internal.Health{}
	for _, c := range checkers {
		health.Register(c)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := health.Check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Run starts all services and manages their lifecycle.
// This function blocks until the context is cancelled or an error occurs.
// Services are started concurrently and stopped gracefully on shutdown.
func Run(ctx context.Context, services []Service, opts Options) error {
	if opts.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 15 * time.Second
	}

	internalServices := make([]internal.Service, len(services))
	for i, service := range services {
		internalServices[i] = service
	}

	runtime := internal.NewRuntime(opts.Logger, internalServices, shutdownTimeout)

	if opts.Health != nil {
		mux := http.NewServeMux()
		mux.Handle("/healthz", HealthHandler(opts.HealthCheckers...))
		runtime.SetHealthServer(&http.Server{Addr: opts.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	if opts.Metrics != nil {
		if opts.MetricsHandler == nil {
			return fmt.Errorf("metrics handler is required when a metrics endpoint is set")
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", opts.MetricsHandler)
		runtime.SetMetricsServer(&http.Server{Addr: opts.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	if err := runtime.Start(ctx); err != nil {
		return fmt.Errorf("runtime start failed: %w", err)
	}

	<-ctx.Done()

	if err := runtime.Stop(context.Background()); err != nil {
		return fmt.Errorf("runtime stop failed: %w", err)
	}

	return nil
}
