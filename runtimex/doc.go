// Package runtimex provides runtime lifecycle orchestration for background
// services and the worker pool that delivers change notifications.
//
// # Overview
//
// runtimex starts and stops services such as file watchers, Kubernetes
// watchers and the notification executor, and optionally serves health and
// metrics endpoints while they run.
//
// # Features
//
//   - Unified lifecycle management with graceful shutdown
//   - Health endpoint backed by pluggable checkers, metrics endpoint for any handler
//   - Executor: worker pool usable as configx.TaskExecutor, never drops a task
//   - Structured logging hooks for startup/shutdown events
//
// # Usage
//
//	exec, _ := runtimex.NewExecutor(runtimex.ExecutorOptions{Workers: 2, Logger: logger})
//	mgr, _ := configx.NewManager(configx.ManagerConfig{Name: "app", Sources: sources, TaskExecutor: exec})
//	err := runtimex.Run(ctx, []runtimex.Service{exec}, runtimex.Options{
//		Logger: logger,
//		Health: &runtimex.Endpoint{Addr: ":8081"},
//	})
//
// # Layer
//
// runtimex belongs to Layer 3 (L3) and depends on core and logx.
//
// # Stability
//
// Stable since v0.1.0. Backward-compatible API changes may occur with minor versions.
package runtimex
