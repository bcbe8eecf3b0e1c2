// Package internal provides the type-agnostic property engine behind configx.
package internal

import (
	"go.eggybyte.com/scf/sourcex"
)

// PrioritizedSource pairs a source with its priority. Higher priorities are
// consulted first.
type PrioritizedSource struct {
	Priority int
	Source   sourcex.Source
}

// Executor runs change notifications.
type Executor interface {
	Run(task func())
}

// Entry is the engine's view of one cached property. The typed layer builds
// it once at creation time and the engine never inspects Property.
type Entry struct {
	Key any
	// Property is the typed property returned to callers.
	Property any
	// Refresh re-resolves the property and installs the new value. It reports
	// false when nothing changed or the change was refused.
	Refresh func() (Change, bool)
}

// Change is produced by Entry.Refresh after the new value is installed.
type Change struct {
	// Event is delivered to manager listeners.
	Event any
	// Notify runs the property's own listeners.
	Notify func()
}

// Check carries the typed hooks a resolution needs.
type Check struct {
	// Accept reports whether v can be used as the property's value type.
	Accept func(v any) bool
	// Filter is the optional value filter. A false result rejects v.
	Filter func(v any) (any, bool)
}

// Resolution is the outcome of walking the sources.
type Resolution struct {
	Value  any
	Source sourcex.Source
	Found  bool
}
