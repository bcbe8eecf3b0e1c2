// Package internal provides the record encoders behind logx.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Options configures record encoding.
type Options struct {
	Format           string     // logfmt or json
	Level            slog.Level // Minimum log level
	Color            bool       // Colorize the level value (logfmt only)
	PayloadMaxBytes  int        // Truncate string values above this size (0 = unlimited)
	SensitiveFields  []string   // Keys whose values are redacted
	DisableTimestamp bool       // Omit the time field
}

const redacted = "***REDACTED***"

// Handler encodes records as logfmt or JSON lines with attributes sorted by key.
// A Handler derived through WithAttrs shares the writer lock of its parent.
type Handler struct {
	opts   Options
	mu     *sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
	group  string
}

// NewHandler creates a new Handler writing to writer.
func NewHandler(opts Options, writer io.Writer) *Handler {
	return &Handler{
		opts:   opts,
		mu:     &sync.Mutex{},
		writer: writer,
	}
}

// LogRecord writes one record built from pre-converted attributes.
func (h *Handler) LogRecord(level slog.Level, msg string, attrs []slog.Attr) {
	if level < h.opts.Level {
		return
	}

	all := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	all = append(all, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		all = append(all, a)
	}
	all = SortAttrs(all)

	var line string
	if h.opts.Format == "json" {
		line = h.encodeJSON(level, msg, all)
	} else {
		line = h.encodeLogfmt(level, msg, all)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.writer, line)
}

func (h *Handler) encodeLogfmt(level slog.Level, msg string, attrs []slog.Attr) string {
	var buf strings.Builder
	if !h.opts.DisableTimestamp {
		buf.WriteString("time=")
		buf.WriteString(time.Now().Format(time.RFC3339))
		buf.WriteString(" ")
	}

	lvl := LevelString(level)
	if h.opts.Color {
		lvl = ColorizeLevel(lvl)
	}
	buf.WriteString("level=")
	buf.WriteString(lvl)
	buf.WriteString(" msg=")
	buf.WriteString(fmt.Sprintf("%q", msg))

	for _, attr := range attrs {
		buf.WriteString(" ")
		buf.WriteString(attr.Key)
		buf.WriteString("=")
		buf.WriteString(FormatValue(attr.Key, attr.Value, h.opts))
	}
	buf.WriteString("\n")
	return buf.String()
}

func (h *Handler) encodeJSON(level slog.Level, msg string, attrs []slog.Attr) string {
	// Fixed fields go first; attributes follow in sorted order.
	var buf strings.Builder
	buf.WriteString("{")
	if !h.opts.DisableTimestamp {
		buf.WriteString(`"time":`)
		buf.WriteString(jsonString(time.Now().Format(time.RFC3339)))
		buf.WriteString(",")
	}
	buf.WriteString(`"level":`)
	buf.WriteString(jsonString(LevelString(level)))
	buf.WriteString(`,"msg":`)
	buf.WriteString(jsonString(msg))
	for _, attr := range attrs {
		buf.WriteString(",")
		buf.WriteString(jsonString(attr.Key))
		buf.WriteString(":")
		buf.WriteString(jsonValue(attr.Key, attr.Value, h.opts))
	}
	buf.WriteString("}\n")
	return buf.String()
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	h.LogRecord(r.Level, r.Message, attrs)
	return nil
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a new Handler that prefixes subsequent keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	if h.group != "" && name != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

// KVToAttrs converts key-value pairs to slog.Attr slice.
// Elements produced by the core/log pair helpers ([]any of length two) are
// flattened; a trailing key without a value is dropped.
func KVToAttrs(kv []any) []slog.Attr {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair[0], pair[1])
			continue
		}
		flat = append(flat, item)
	}

	attrs := make([]slog.Attr, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprintf("%v", flat[i]), flat[i+1]))
	}
	return attrs
}

// SortAttrs returns a copy of attrs sorted by key.
func SortAttrs(attrs []slog.Attr) []slog.Attr {
	sorted := make([]slog.Attr, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

func isSensitive(key string, opts Options) bool {
	for _, field := range opts.SensitiveFields {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

func truncate(s string, opts Options) string {
	if opts.PayloadMaxBytes > 0 && len(s) > opts.PayloadMaxBytes {
		return fmt.Sprintf("%s...(truncated, %d bytes)", s[:opts.PayloadMaxBytes], len(s))
	}
	return s
}

// FormatValue formats a slog.Value for logfmt output.
func FormatValue(key string, v slog.Value, opts Options) string {
	if isSensitive(key, opts) {
		return fmt.Sprintf("%q", redacted)
	}

	switch v.Kind() {
	case slog.KindString:
		return fmt.Sprintf("%q", truncate(v.String(), opts))
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		f := v.Float64()
		if f == float64(int64(f)) {
			return fmt.Sprintf("%.0f", f)
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", f), "0"), ".")
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return fmt.Sprintf("%q", v.Time().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%q", truncate(fmt.Sprintf("%v", v.Any()), opts))
	}
}

func jsonValue(key string, v slog.Value, opts Options) string {
	if isSensitive(key, opts) {
		return jsonString(redacted)
	}

	switch v.Kind() {
	case slog.KindString:
		return jsonString(truncate(v.String(), opts))
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool:
		return FormatValue(key, v, opts)
	case slog.KindDuration:
		return jsonString(v.Duration().String())
	case slog.KindTime:
		return jsonString(v.Time().Format(time.RFC3339))
	}

	if err, ok := v.Any().(error); ok {
		return jsonString(err.Error())
	}
	data, err := json.Marshal(v.Any())
	if err != nil {
		return jsonString(fmt.Sprintf("%v", v.Any()))
	}
	return string(data)
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// LevelString returns the string representation of a log level.
func LevelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

// ColorizeLevel wraps a level name in its ANSI color.
func ColorizeLevel(level string) string {
	const reset = "\033[0m"
	colors := map[string]string{
		"DEBUG": "\033[35m",
		"INFO":  "\033[36m",
		"WARN":  "\033[33m",
		"ERROR": "\033[31m",
	}
	if c, ok := colors[level]; ok {
		return c + level + reset
	}
	return level
}
