// Package internal contains the runtime implementation.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.eggybyte.com/scf/core/log"
)

// Runtime manages the lifecycle of services and the auxiliary servers.
type Runtime struct {
	logger          log.Logger
	healthServer    *http.Server
	metricsServer   *http.Server
	services        []Service
	shutdownTimeout time.Duration
}

// Service is the interface for services that can be started and stopped.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NewRuntime creates a new runtime instance.
func NewRuntime(logger log.Logger, services []Service, shutdownTimeout time.Duration) *Runtime {
	return &Runtime{
		logger:          logger,
		services:        services,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts all services concurrently, then the servers.
func (r *Runtime) Start(ctx context.Context) error {
	r.logger.Info("starting runtime", log.Int("services", len(r.services)))

	var wg sync.WaitGroup
	errChan := make(chan error, len(r.services))

	for i, service := range r.services {
		wg.Add(1)
		go func(idx int, svc Service) {
			defer wg.Done()
			if err := svc.Start(ctx); err != nil {
				r.logger.Error(err, "service start failed", log.Int("index", idx))
				errChan <- fmt.Errorf("service %d start failed: %w", idx, err)
				return
			}
			r.logger.Debug("service started", log.Int("index", idx))
		}(i, service)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	r.serve("health", r.healthServer)
	r.serve("metrics", r.metricsServer)

	r.logger.Info("runtime started")
	return nil
}

func (r *Runtime) serve(name string, server *http.Server) {
	if server == nil {
		return
	}
	go func() {
		r.logger.Info("starting "+name+" server", log.Str("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error(err, name+" server failed")
		}
	}()
}

// Stop gracefully shuts down the servers, then all services.
func (r *Runtime) Stop(ctx context.Context) error {
	r.logger.Info("stopping runtime")

	shutdownCtx, cancel := context.WithTimeout(ctx, r.shutdownTimeout)
	defer cancel()

	r.shutdown(shutdownCtx, "health", r.healthServer)
	r.shutdown(shutdownCtx, "metrics", r.metricsServer)

	var wg sync.WaitGroup
	errChan := make(chan error, len(r.services))

	for i, service := range r.services {
		wg.Add(1)
		go func(idx int, svc Service) {
			defer wg.Done()
			if err := svc.Stop(shutdownCtx); err != nil {
				r.logger.Error(err, "service stop failed", log.Int("index", idx))
				errChan <- fmt.Errorf("service %d stop failed: %w", idx, err)
			}
		}(i, service)
	}

	wg.Wait()
	close(errChan)

	var first error
	for err := range errChan {
		if first == nil {
			first = err
		}
	}

	r.logger.Info("runtime stopped")
	return first
}

func (r *Runtime) shutdown(ctx context.Context, name string, server *http.Server) {
	if server == nil {
		return
	}
	if err := server.Shutdown(ctx); err != nil {
		r.logger.Error(err, name+" server shutdown failed")
	}
}

// SetHealthServer sets the health server.
func (r *Runtime) SetHealthServer(server *http.Server) {
	r.healthServer = server
}

// SetMetricsServer sets the metrics server.
func (r *Runtime) SetMetricsServer(server *http.Server) {
	r.metricsServer = server
}
