package logx

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.eggybyte.com/scf/core/log"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Info("property resolved", log.Str("key", "timeout"))

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Errorf("expected level=INFO, got: %s", output)
	}
	if !strings.Contains(output, `msg="property resolved"`) {
		t.Errorf("expected msg in output, got: %s", output)
	}
	if !strings.Contains(output, `key="timeout"`) {
		t.Errorf("expected key=\"timeout\" in output, got: %s", output)
	}
}

func TestFieldSorting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Info("test", "zebra", "z", "alpha", "a", "beta", "b")

	output := buf.String()
	alphaPos := strings.Index(output, `alpha="a"`)
	betaPos := strings.Index(output, `beta="b"`)
	zebraPos := strings.Index(output, `zebra="z"`)
	if alphaPos == -1 || betaPos == -1 || zebraPos == -1 {
		t.Fatalf("missing fields in output: %s", output)
	}
	if alphaPos > betaPos || betaPos > zebraPos {
		t.Errorf("fields not sorted: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		logFunc  func(log.Logger)
		expected bool
	}{
		{"debug at info", slog.LevelInfo, func(l log.Logger) { l.Debug("m") }, false},
		{"info at info", slog.LevelInfo, func(l log.Logger) { l.Info("m") }, true},
		{"warn at error", slog.LevelError, func(l log.Logger) { l.Warn("m") }, false},
		{"error at error", slog.LevelError, func(l log.Logger) { l.Error(nil, "m") }, true},
		{"debug at debug", slog.LevelDebug, func(l log.Logger) { l.Debug("m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(New(WithWriter(&buf), WithLevel(tt.level)))
			if got := buf.Len() > 0; got != tt.expected {
				t.Errorf("logged = %v, want %v (%q)", got, tt.expected, buf.String())
			}
		})
	}
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Error(errors.New("connection refused"), "source lookup failed", log.Str("source", "db"))

	output := buf.String()
	if !strings.Contains(output, "level=ERROR") {
		t.Errorf("expected level=ERROR, got: %s", output)
	}
	if !strings.Contains(output, `error="connection refused"`) {
		t.Errorf("expected error field, got: %s", output)
	}
}

func TestSensitiveFieldsAndPayloadLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithSensitiveFields("password"), WithPayloadLimit(5))

	logger.Info("value changed", "password", "hunter2", "new", "0123456789")

	output := buf.String()
	if strings.Contains(output, "hunter2") {
		t.Errorf("password leaked: %s", output)
	}
	if !strings.Contains(output, "truncated, 10 bytes") {
		t.Errorf("expected truncation marker: %s", output)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithFormat(FormatJSON))

	logger.Warn("static property change ignored", log.Any("key", 7))

	output := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(output, "{") || !strings.Contains(output, `"key":7`) {
		t.Errorf("unexpected JSON output: %s", output)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(WithWriter(&buf)), "source", "env").With(log.Int("priority", 1))

	logger.Info("registered")

	output := buf.String()
	for _, want := range []string{`component="source"`, `name="env"`, "priority=1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in %s", want, output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf)).With("manager", "app").(*Logger)

	logger.Slog().Info("bridged", "k", "v")

	output := buf.String()
	if !strings.Contains(output, `manager="app"`) || !strings.Contains(output, `k="v"`) {
		t.Errorf("unexpected slog bridge output: %s", output)
	}
}
