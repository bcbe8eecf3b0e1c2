// Package sourcex defines configuration sources and the standard implementations.
//
// Overview:
//   - Responsibility: Look up raw values by key, convert them to the requested type, report changes
//   - Key Types: Config, Source, StringSource, Base, ChangeEvent
//   - Concurrency Model: Sources are safe for concurrent lookups; listeners may be added at any time
//   - Error Semantics: Lookup failures and conversion errors are returned; the manager logs and skips them
//   - Performance Notes: Base copies the listener slice before dispatch so raising never holds the lock
//
// A source never decides whether a property is static; it only reports that
// its data changed. Sources built on Base get the shared conversion rules:
// absent raw values stay absent, the first converter that accepts the raw
// value and produces the requested type wins, and otherwise a raw value that
// is already of the requested type is returned as is.
//
// Usage:
//
//	cfg, _ := sourcex.NewConfig("overrides")
//	mem := sourcex.NewMemorySource(cfg, nil)
//	mem.Set("timeout", "30s")
package sourcex

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/logx"
	"go.eggybyte.com/scf/typex"
)

// Config identifies a source. Two sources built from equal configs are still
// distinct; identity is the *Config pointer.
type Config struct {
	Name string `validate:"notblank"`
}

// NewConfig validates and builds a source Config.
func NewConfig(name string) (*Config, error) {
	cfg := &Config{Name: name}
	if err := validate.Struct("sourcex.NewConfig", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustConfig is like NewConfig but panics on an invalid name.
func MustConfig(name string) *Config {
	cfg, err := NewConfig(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf("source{name=%s}", c.Name)
}

// PropertyRequest is the untyped view of a property config a source needs to
// answer a lookup.
type PropertyRequest interface {
	PropertyKey() any
	ValueType() reflect.Type
	ValueConverters() []typex.Converter
}

// ChangeEvent reports that a source's data changed.
type ChangeEvent struct {
	Source     Source
	ChangeTime time.Time
}

// Source provides raw values by key and notifies listeners when its data changes.
type Source interface {
	// Config returns the identity of the source.
	Config() *Config
	// GetPropertyValue returns the converted value for req, or false when absent.
	GetPropertyValue(req PropertyRequest) (any, bool, error)
	// AddChangeListener registers fn for every later change. A nil fn is an
	// argument error. Listeners cannot be removed.
	AddChangeListener(fn func(ChangeEvent)) error
}

// StringSource is a Source whose keys and raw values are strings.
type StringSource interface {
	Source
	// GetStringValue returns the raw value stored under key.
	GetStringValue(key string) (string, bool, error)
}

// LookupFunc fetches the raw value stored under key. A nil or blank result
// with a nil error means absent.
type LookupFunc func(key any) (any, error)

// StringLookup adapts a string getter to a LookupFunc. Non-string keys are absent.
func StringLookup(get func(key string) (string, bool, error)) LookupFunc {
	return func(key any) (any, error) {
		k, ok := key.(string)
		if !ok {
			return nil, nil
		}
		v, found, err := get(k)
		if err != nil || !found {
			return nil, err
		}
		return v, nil
	}
}

// Base implements listener bookkeeping, change raising and value conversion.
// Concrete sources embed *Base and supply a LookupFunc.
type Base struct {
	config *Config
	owner  Source
	lookup LookupFunc
	logger log.Logger

	mu        sync.Mutex
	listeners []func(ChangeEvent)
}

// NewBase builds a Base for owner. owner is reported as the Source of raised
// events; it is usually the struct embedding the returned Base. A nil logger
// falls back to logx.New().
func NewBase(owner Source, cfg *Config, logger log.Logger, lookup LookupFunc) *Base {
	if logger == nil {
		logger = logx.New()
	}
	name := ""
	if cfg != nil {
		name = cfg.Name
	}
	return &Base{
		config: cfg,
		owner:  owner,
		lookup: lookup,
		logger: logx.Component(logger, "source", name),
	}
}

// Config returns the source identity.
func (b *Base) Config() *Config {
	return b.config
}

// Logger returns the source's component logger.
func (b *Base) Logger() log.Logger {
	return b.logger
}

// AddChangeListener registers fn.
func (b *Base) AddChangeListener(fn func(ChangeEvent)) error {
	if fn == nil {
		return errors.New(errors.CodeInvalidArgument, "change listener is required")
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
	return nil
}

// RaiseChange notifies every listener that the source changed now.
func (b *Base) RaiseChange() {
	b.RaiseChangeAt(time.Now())
}

// RaiseChangeAt notifies every listener with the given change time.
// A panicking listener is logged and does not stop the others.
func (b *Base) RaiseChangeAt(at time.Time) {
	b.mu.Lock()
	listeners := append([]func(ChangeEvent){}, b.listeners...)
	b.mu.Unlock()

	event := ChangeEvent{Source: b.owner, ChangeTime: at}
	for _, fn := range listeners {
		b.dispatch(fn, event)
	}
}

func (b *Base) dispatch(fn func(ChangeEvent), event ChangeEvent) {
	defer func() {
		if err := errors.Recovered("sourcex.RaiseChange", recover()); err != nil {
			b.logger.Error(err, "source change listener failed")
		}
	}()
	fn(event)
}

// GetPropertyValue looks up req's key and converts the raw value.
func (b *Base) GetPropertyValue(req PropertyRequest) (any, bool, error) {
	if b.lookup == nil {
		return nil, false, nil
	}
	raw, err := b.lookup(req.PropertyKey())
	if err != nil {
		return nil, false, err
	}
	return Convert(raw, req.ValueType(), req.ValueConverters())
}

// Convert turns raw into a value of type target.
//
// Absent raw values are absent. Otherwise the first converter that accepts
// raw and produces target decides the outcome, including an absent result or
// an error. When no converter matches, raw is returned if it is assignable to
// target and is absent otherwise.
func Convert(raw any, target reflect.Type, converters []typex.Converter) (any, bool, error) {
	if typex.IsAbsent(raw) {
		return nil, false, nil
	}
	for _, c := range converters {
		if c == nil || target == nil || !typex.Accepts(c, raw) || !typex.Produces(c, target) {
			continue
		}
		v, err := c.Convert(raw)
		if err != nil {
			return nil, false, err
		}
		if typex.IsAbsent(v) {
			return nil, false, nil
		}
		return v, true, nil
	}
	if target != nil && reflect.TypeOf(raw).AssignableTo(target) {
		return raw, true, nil
	}
	return nil, false, nil
}
