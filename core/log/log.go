// Package log defines the logging contract shared by every scf package.
//
// Overview:
//   - Responsibility: Stable structured logging interface for sources, managers and executors
//   - Key Types: Logger interface, key-value pair helpers
//   - Concurrency Model: Logger implementations must be safe for concurrent use
//   - Error Semantics: Error takes the error as first parameter so swallowed faults stay structured
//   - Performance Notes: Pair helpers allocate one small slice per field
//
// Usage:
//
//	logger.Warn("static property change ignored", log.Any("key", key), log.Str("source", name))
package log

import "time"

// Logger defines a structured logging interface compatible with slog concepts.
// Implementations must be safe for concurrent use.
type Logger interface {
	// With returns a new Logger with the given key-value pairs attached.
	With(kv ...any) Logger

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, kv ...any)

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, kv ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, kv ...any)

	// Error logs an error message with the error and optional key-value pairs.
	Error(err error, msg string, kv ...any)
}

// Str creates a string key-value pair for structured logging.
func Str(k, v string) any {
	return []any{k, v}
}

// Int creates an integer key-value pair for structured logging.
func Int(k string, v int) any {
	return []any{k, v}
}

// Dur creates a duration key-value pair for structured logging.
func Dur(k string, v time.Duration) any {
	return []any{k, v}
}

// Any creates a key-value pair holding an arbitrary value, typically a
// property key or a resolved value whose type is only known at runtime.
func Any(k string, v any) any {
	return []any{k, v}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (l nopLogger) With(kv ...any) Logger              { return l }
func (nopLogger) Debug(msg string, kv ...any)            {}
func (nopLogger) Info(msg string, kv ...any)             {}
func (nopLogger) Warn(msg string, kv ...any)             {}
func (nopLogger) Error(err error, msg string, kv ...any) {}
