// Package k8sx provides a Kubernetes ConfigMap configuration source.
//
// # Overview
//
// k8sx loads a ConfigMap through client-go, keeps watching it, and serves
// its data to a configx.Manager as a sourcex.StringSource. Every effective
// change to the data raises one source change event.
//
// # Features
//
//   - Initial load with retry; a missing ConfigMap starts empty
//   - Watch resumes from the last seen resource version after a dropped connection
//   - Deleting the ConfigMap clears the source
//   - Runs as a runtimex.Service
//
// # Usage
//
//	client, _ := k8sx.NewInClusterClient()
//	src, _ := k8sx.NewConfigMapSource(client, k8sx.Options{Name: "app-config", Namespace: "prod"})
//	mgr, _ := configx.NewManager(configx.ManagerConfig{
//		Name:    "app",
//		Sources: []configx.PrioritizedSource{{Priority: 10, Source: src}},
//	})
//
// # Layer
//
// k8sx belongs to Layer 3 (L3) and depends on sourcex and Kubernetes client-go.
//
// # Stability
//
// Stable since v0.1.0. Backward-compatible API changes may occur with minor versions.
package k8sx
