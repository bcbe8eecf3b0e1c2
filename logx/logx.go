// Package logx provides the default structured Logger for scf, built on slog.
//
// Overview:
//   - Responsibility: logfmt/JSON output with sorted fields, redaction and colorized levels
//   - Key Types: Logger implementation, Options and functional Option setters
//   - Concurrency Model: All loggers are safe for concurrent use; derived loggers share one writer lock
//   - Error Semantics: No errors returned; write failures are dropped
//   - Performance Notes: Disabled levels return before any attribute conversion
//
// Usage:
//
//	logger := logx.New(logx.WithFormat(logx.FormatJSON), logx.WithLevel(slog.LevelDebug))
//	srcLog := logx.Component(logger, "source", "env")
//	srcLog.Warn("lookup failed", log.Any("key", key))
package logx

import (
	"io"
	"log/slog"
	"os"

	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/logx/internal"
)

// Format specifies the output format for logs.
type Format string

const (
	// FormatLogfmt outputs logs in logfmt format (key=value pairs).
	FormatLogfmt Format = "logfmt"
	// FormatJSON outputs one JSON object per line.
	FormatJSON Format = "json"
)

// Options configures the logger behavior.
type Options struct {
	Format           Format     // Output format: logfmt or json
	Level            slog.Level // Minimum log level
	Color            bool       // Enable colorization for level field only
	Writer           io.Writer  // Output writer (default: os.Stderr)
	PayloadMaxBytes  int        // Maximum bytes to log for large values (0 = unlimited)
	SensitiveFields  []string   // Field names to mask (e.g., "password", "token")
	DisableTimestamp bool       // Disable timestamp in output
}

// Logger implements the core/log.Logger interface using slog.
type Logger struct {
	handler *internal.Handler
	level   slog.Level
	attrs   []slog.Attr
}

// Option configures logger behavior.
type Option func(*Options)

// New creates a new Logger with the given options.
func New(opts ...Option) log.Logger {
	options := Options{
		Format:           FormatLogfmt,
		Level:            slog.LevelInfo,
		Writer:           os.Stderr,
		DisableTimestamp: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Writer == nil {
		options.Writer = os.Stderr
	}
	if options.Format != FormatJSON {
		options.Format = FormatLogfmt
	}

	handler := internal.NewHandler(internal.Options{
		Format:           string(options.Format),
		Level:            options.Level,
		Color:            options.Color,
		PayloadMaxBytes:  options.PayloadMaxBytes,
		SensitiveFields:  options.SensitiveFields,
		DisableTimestamp: options.DisableTimestamp,
	}, options.Writer)

	return &Logger{handler: handler, level: options.Level}
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) { o.Format = format }
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) { o.Level = level }
}

// WithColor enables colorization for the level field only.
func WithColor(enabled bool) Option {
	return func(o *Options) { o.Color = enabled }
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

// WithPayloadLimit sets the maximum bytes to log for large string values.
func WithPayloadLimit(maxBytes int) Option {
	return func(o *Options) { o.PayloadMaxBytes = maxBytes }
}

// WithSensitiveFields sets field names to mask in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(o *Options) { o.SensitiveFields = fields }
}

// WithTimestamp enables the time field.
func WithTimestamp(enabled bool) Option {
	return func(o *Options) { o.DisableTimestamp = !enabled }
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown names map to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Component returns base annotated with the component kind and instance name,
// the convention used by managers, sources and executors.
func Component(base log.Logger, kind, name string) log.Logger {
	if base == nil {
		base = New()
	}
	return base.With("component", kind, "name", name)
}

// With returns a new Logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) log.Logger {
	attrs := append([]slog.Attr{}, l.attrs...)
	attrs = append(attrs, internal.KVToAttrs(kv)...)
	return &Logger{handler: l.handler, level: l.level, attrs: attrs}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.log(slog.LevelDebug, msg, nil, kv)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, kv ...any) {
	l.log(slog.LevelInfo, msg, nil, kv)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kv ...any) {
	l.log(slog.LevelWarn, msg, nil, kv)
}

// Error logs an error message. A nil err is omitted from the output.
func (l *Logger) Error(err error, msg string, kv ...any) {
	l.log(slog.LevelError, msg, err, kv)
}

func (l *Logger) log(level slog.Level, msg string, err error, kv []any) {
	if level < l.level {
		return
	}
	attrs := append([]slog.Attr{}, l.attrs...)
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	attrs = append(attrs, internal.KVToAttrs(kv)...)
	l.handler.LogRecord(level, msg, attrs)
}

// Slog exposes the logger as a *slog.Logger for libraries that expect one.
func (l *Logger) Slog() *slog.Logger {
	var h slog.Handler = l.handler
	if len(l.attrs) > 0 {
		h = h.WithAttrs(l.attrs)
	}
	return slog.New(h)
}
