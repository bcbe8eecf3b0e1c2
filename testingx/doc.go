// Package testingx provides testing helpers and fakes for scf packages.
//
// # Overview
//
// testingx contains small utilities to speed up unit tests: a mock logger
// that records entries for assertions, a recorder for change listeners that
// may be called from other goroutines, and error-code assertions.
//
// # Features
//
//   - MockLogger with in-memory capture and assertions
//   - Recorder[T] usable directly as a listener function
//   - Error assertion helpers for core/errors codes
//
// # Usage
//
//	logger := testingx.NewMockLogger(t)
//	events := testingx.NewRecorder[configx.ChangeEvent]()
//	_ = manager.AddChangeListener(events.Record)
//	testingx.AssertError(t, err, errors.CodeConfigMismatch)
//
// # Layer
//
// testingx is an auxiliary package for tests only and depends on core packages.
package testingx
