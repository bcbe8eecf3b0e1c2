// Package configx resolves typed, live configuration properties from
// prioritized sources.
//
// Overview:
//   - Responsibility: Merge sources by priority, cache one Property per key, propagate source changes
//   - Key Types: Manager, ManagerConfig, PropertyConfig, Property, PropertyChangeEvent, TaskExecutor
//   - Concurrency Model: Manager and Property are safe for concurrent use; change passes are serialized
//   - Error Semantics: Construction and mismatch errors are returned; source and listener faults are logged
//   - Performance Notes: Cached lookups are lock-free; Property.Value is a single atomic load
//
// Usage:
//
//	mgr, err := configx.NewManager(configx.ManagerConfig{
//	  Name: "app",
//	  Sources: []configx.PrioritizedSource{
//	    {Priority: 2, Source: overrides},
//	    {Priority: 1, Source: env},
//	  },
//	  Logger: logger,
//	})
//	timeout := configx.MustPropertyConfig(configx.PropertySpec[string, time.Duration]{
//	  Key:             "timeout",
//	  DefaultValue:    5 * time.Second,
//	  ValueConverters: []typex.Converter{typex.StringToDuration},
//	})
//	prop, err := configx.GetProperty(mgr, timeout)
//	d := prop.Value()
package configx

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"go.eggybyte.com/scf/configx/internal"
	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/typex"
)

// PrioritizedSource pairs a source with its priority. Higher priorities are
// consulted first; priorities must be unique within a manager.
type PrioritizedSource struct {
	Priority int
	Source   sourcex.Source
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Name    string              `validate:"notblank"`
	Sources []PrioritizedSource `validate:"notblank"`
	// TaskExecutor runs change notifications. Defaults to InlineExecutor.
	TaskExecutor TaskExecutor `validate:"-"`
	// Logger defaults to logx.New().
	Logger log.Logger `validate:"-"`
	// MeterProvider receives the manager metrics. Defaults to a no-op provider.
	MeterProvider metric.MeterProvider `validate:"-"`
}

// Manager owns the property cache of one set of sources.
type Manager struct {
	config ManagerConfig
	impl   *internal.Manager
}

// NewManager validates cfg and subscribes to every source.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	const op = "configx.NewManager"
	if err := validate.Struct(op, cfg); err != nil {
		return nil, err
	}

	sources := make([]internal.PrioritizedSource, len(cfg.Sources))
	for i, ps := range cfg.Sources {
		sources[i] = internal.PrioritizedSource{Priority: ps.Priority, Source: ps.Source}
	}
	impl, err := internal.NewManager(internal.Options{
		Name:          cfg.Name,
		Sources:       sources,
		Executor:      cfg.TaskExecutor,
		Logger:        cfg.Logger,
		MeterProvider: cfg.MeterProvider,
	})
	if err != nil {
		return nil, err
	}

	sorted := impl.Sources()
	cfg.Sources = make([]PrioritizedSource, len(sorted))
	for i, ps := range sorted {
		cfg.Sources[i] = PrioritizedSource{Priority: ps.Priority, Source: ps.Source}
	}
	if cfg.TaskExecutor == nil {
		cfg.TaskExecutor = InlineExecutor{}
	}
	cfg.Logger = impl.Logger()
	return &Manager{config: cfg, impl: impl}, nil
}

// Config returns the effective configuration with sources in descending
// priority order.
func (m *Manager) Config() ManagerConfig {
	cfg := m.config
	cfg.Sources = slices.Clone(m.config.Sources)
	return cfg
}

func (m *Manager) Name() string {
	return m.config.Name
}

// AddChangeListener registers fn for every property change of this manager.
func (m *Manager) AddChangeListener(fn func(ChangeEvent)) error {
	if fn == nil {
		return errors.New(errors.CodeInvalidArgument, "change listener is required")
	}
	return m.impl.AddChangeListener(func(event any) {
		fn(event.(ChangeEvent))
	})
}

// Properties returns every property created so far, ordered by key.
func (m *Manager) Properties() []AnyProperty {
	entries := m.impl.Entries()
	props := make([]AnyProperty, 0, len(entries))
	for _, e := range entries {
		if p, ok := e.Property.(AnyProperty); ok {
			props = append(props, p)
		}
	}
	slices.SortFunc(props, func(a, b AnyProperty) int {
		return cmp.Compare(fmt.Sprint(a.PropertyKey()), fmt.Sprint(b.PropertyKey()))
	})
	return props
}

func (m *Manager) String() string {
	names := make([]string, len(m.config.Sources))
	for i, ps := range m.config.Sources {
		names[i] = fmt.Sprintf("%s@%d", sourceName(ps.Source), ps.Priority)
	}
	return fmt.Sprintf("Manager{name=%s, sources=%v, properties=%d}", m.config.Name, names, len(m.impl.Entries()))
}

// GetProperty returns the live property for cfg's key, creating it on first
// use. Concurrent first calls create a single Property.
//
// A key first requested with a different config, or with a different value
// type, fails with a config mismatch error. A required property that
// resolves to nothing fails with a required-missing error and is not cached.
func GetProperty[K comparable, V any](m *Manager, cfg *PropertyConfig[K, V]) (*Property[K, V], error) {
	const op = "configx.GetProperty"
	if m == nil || cfg == nil {
		return nil, errors.Build(errors.CodeInvalidArgument).WithOp(op).WithMsg("manager and property config are required").Err()
	}

	e, err := m.impl.LoadOrCreate(cfg.PropertyKey(), func() (*internal.Entry, error) {
		value, src, found := lookup(m, cfg)
		if !found && cfg.required {
			return nil, requiredMissing(op, cfg)
		}
		p := newProperty(cfg, value, src, m.impl.Logger())
		return &internal.Entry{
			Key:      cfg.key,
			Property: p,
			Refresh:  func() (internal.Change, bool) { return refresh(m, p) },
		}, nil
	})
	if err != nil {
		return nil, err
	}

	p, ok := e.Property.(*Property[K, V])
	if !ok || !p.config.Equal(cfg) {
		return nil, errors.Build(errors.CodeConfigMismatch).WithOp(op).
			WithMsgf("key %v is already bound to %s, requested %s", cfg.key, describe(e.Property), cfg).Err()
	}
	return p, nil
}

// MustGetProperty is like GetProperty but panics on error.
func MustGetProperty[K comparable, V any](m *Manager, cfg *PropertyConfig[K, V]) *Property[K, V] {
	p, err := GetProperty(m, cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// GetPropertyValue resolves cfg against the current sources without caching
// a Property.
func GetPropertyValue[K comparable, V any](m *Manager, cfg *PropertyConfig[K, V]) (V, error) {
	const op = "configx.GetPropertyValue"
	var zero V
	if m == nil || cfg == nil {
		return zero, errors.Build(errors.CodeInvalidArgument).WithOp(op).WithMsg("manager and property config are required").Err()
	}
	value, _, found := lookup(m, cfg)
	if !found && cfg.required {
		return zero, requiredMissing(op, cfg)
	}
	return value, nil
}

// lookup resolves cfg from the sources, then falls back to the default.
func lookup[K comparable, V any](m *Manager, cfg *PropertyConfig[K, V]) (V, sourcex.Source, bool) {
	res := m.impl.Resolve(cfg, internal.Check{
		Accept: func(v any) bool {
			_, ok := v.(V)
			return ok
		},
		Filter: filterFunc(cfg),
	})
	if res.Found {
		return res.Value.(V), res.Source, true
	}
	if cfg.hasDefault {
		return cfg.defaultValue, nil, true
	}
	var zero V
	return zero, nil, false
}

func filterFunc[K comparable, V any](cfg *PropertyConfig[K, V]) func(any) (any, bool) {
	if cfg.filter == nil {
		return nil
	}
	return func(v any) (any, bool) {
		out, ok := cfg.filter.Filter(v.(V))
		if !ok || typex.IsAbsent(out) {
			return nil, false
		}
		return out, true
	}
}

// refresh runs one property through a change pass. It is called with the
// manager lock held.
func refresh[K comparable, V any](m *Manager, p *Property[K, V]) (internal.Change, bool) {
	cfg := p.config
	if cfg.static {
		p.logger.Debug("static property not re-resolved")
		return internal.Change{}, false
	}
	value, src, found := lookup(m, cfg)
	old := p.Value()

	if !found && cfg.required {
		p.logger.Error(requiredMissing("configx.refresh", cfg), "ignoring change of required property to nothing, keeping current value",
			log.Any("current", old))
		return internal.Change{}, false
	}
	if cfg.compare(old, value) == 0 {
		return internal.Change{}, false
	}

	event := p.swap(value, src, time.Now())
	p.logger.Info("property changed", log.Any("old", old), log.Any("new", value), log.Str("source", sourceName(src)))
	return internal.Change{
		Event:  event,
		Notify: func() { p.raise(event) },
	}, true
}

func requiredMissing[K comparable, V any](op string, cfg *PropertyConfig[K, V]) error {
	return errors.Build(errors.CodeRequiredMissing).WithOp(op).
		WithMsgf("required property %v resolved to nothing: %s", cfg.key, cfg).Err()
}

func describe(p any) string {
	if ap, ok := p.(AnyProperty); ok {
		return ap.ConfigString()
	}
	return fmt.Sprintf("%T", p)
}

func sourceName(src sourcex.Source) string {
	return internal.SourceName(src)
}
