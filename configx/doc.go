// Package configx resolves typed, live configuration properties.
//
// # Overview
//
// A Manager holds an ordered set of sources. A PropertyConfig names a key,
// the value type, how raw values are converted and filtered, and what to do
// when nothing is configured. GetProperty returns a Property whose value is
// kept current: whenever a source reports a change the manager re-resolves
// every cached property and notifies listeners of the ones that changed.
//
// # Features
//
//   - Sources consulted in descending priority; the first usable value wins
//   - One Property per key per manager, created once under concurrent access
//   - Value filters that may rewrite values or reject them in favour of lower sources
//   - Defaults, required properties and static (restart-only) properties
//   - Property and manager change listeners dispatched through a TaskExecutor
//   - Faulty sources, filters and listeners are logged and isolated
//   - OpenTelemetry counters for resolutions, source errors, filter rejections and changes
//
// # Usage
//
//	mgr, err := configx.NewManager(configx.ManagerConfig{
//		Name:    "app",
//		Sources: []configx.PrioritizedSource{{Priority: 1, Source: mem}},
//	})
//	if err != nil { return err }
//
//	port := configx.MustPropertyConfig(configx.PropertySpec[string, int]{
//		Key:             "port",
//		DefaultValue:    8080,
//		ValueConverters: []typex.Converter{typex.StringToInt},
//	})
//	prop, err := configx.GetProperty(mgr, port)
//	if err != nil { return err }
//	_ = prop.AddChangeListener(func(e *configx.PropertyChangeEvent[string, int]) {
//		logger.Info("port changed", "old", e.OldValue(), "new", e.NewValue())
//	})
//
// # Layer
//
// configx belongs to Layer 2 (L2) and depends on core, logx, typex, filterx
// and sourcex.
//
// # Stability
//
// Stable since v0.1.0. Backward-compatible API changes may occur with minor versions.
package configx
