package testingx

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
	Error   error
}

// Field returns the value logged under key, flattening the core/log pair helpers.
func (e LogEntry) Field(key string) (any, bool) {
	flat := make([]any, 0, len(e.Fields))
	for _, f := range e.Fields {
		if pair, ok := f.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair...)
			continue
		}
		flat = append(flat, f)
	}
	for i := 0; i+1 < len(flat); i += 2 {
		if fmt.Sprint(flat[i]) == key {
			return flat[i+1], true
		}
	}
	return nil, false
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// MockLogger records every entry for later assertions. Loggers derived with
// With share the same entry list and prepend their fields.
type MockLogger struct {
	t      testing.TB
	sink   *logSink
	fields []any
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t testing.TB) *MockLogger {
	return &MockLogger{t: t, sink: &logSink{}}
}

// With returns a logger that records kv with every entry.
func (m *MockLogger) With(kv ...any) log.Logger {
	fields := append(append([]any{}, m.fields...), kv...)
	return &MockLogger{t: m.t, sink: m.sink, fields: fields}
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, kv ...any) { m.log("DEBUG", msg, nil, kv) }

// Info logs an info message.
func (m *MockLogger) Info(msg string, kv ...any) { m.log("INFO", msg, nil, kv) }

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, kv ...any) { m.log("WARN", msg, nil, kv) }

// Error logs an error message.
func (m *MockLogger) Error(err error, msg string, kv ...any) { m.log("ERROR", msg, err, kv) }

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = append(m.sink.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  append(append([]any{}, m.fields...), kv...),
		Error:   err,
	})
}

// Entries returns all log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return append([]LogEntry(nil), m.sink.entries...)
}

// Find returns the entries with the given level and message.
func (m *MockLogger) Find(level, msg string) []LogEntry {
	var found []LogEntry
	for _, e := range m.Entries() {
		if e.Level == level && e.Message == msg {
			found = append(found, e)
		}
	}
	return found
}

// Count returns the number of entries at level.
func (m *MockLogger) Count(level string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// AssertLogged asserts that a message was logged.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.t.Helper()
	if len(m.Find(level, msg)) == 0 {
		m.t.Errorf("Expected log message not found: level=%s msg=%q", level, msg)
	}
}

// AssertNotLogged asserts that no entry has the given level and message.
func (m *MockLogger) AssertNotLogged(level, msg string) {
	m.t.Helper()
	if n := len(m.Find(level, msg)); n > 0 {
		m.t.Errorf("Unexpected log message found %d times: level=%s msg=%q", n, level, msg)
	}
}

// Clear clears all log entries.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = nil
}

// AssertError asserts that an error has the expected code.
func AssertError(t testing.TB, err error, expectedCode errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", expectedCode)
	}
	if code := errors.CodeOf(err); code != expectedCode {
		t.Errorf("Expected error code %s, got %s (%v)", expectedCode, code, err)
	}
}

// AssertNoError asserts that no error occurred.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

// Recorder collects values delivered to listeners, possibly from other goroutines.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []T
	notify chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{}, 1)}
}

// Record appends v. It has the signature of a listener.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of the recorded values.
func (r *Recorder[T]) Events() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.events...)
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WaitFor blocks until at least n values were recorded or timeout elapses,
// and reports whether n was reached.
func (r *Recorder[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Len() >= n
		}
	}
}

// Eventually fails t when cond does not hold within timeout.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v: %s", timeout, msg)
	}
}
