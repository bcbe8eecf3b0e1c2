package internal

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/logx"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/typex"
)

// Options configures a Manager. Callers validate names before building one.
type Options struct {
	Name          string
	Sources       []PrioritizedSource
	Executor      Executor
	Logger        log.Logger
	MeterProvider metric.MeterProvider
}

// Manager resolves properties against prioritized sources and keeps one
// Entry per key.
type Manager struct {
	name     string
	sources  []PrioritizedSource
	executor Executor
	logger   log.Logger
	metrics  *metrics

	// mu serializes property creation and change passes.
	mu      sync.Mutex
	entries sync.Map // key -> *Entry

	listenersMu sync.Mutex
	listeners   []func(event any)
}

type inlineExecutor struct{}

func (inlineExecutor) Run(task func()) { task() }

// NewManager sorts the sources by descending priority and subscribes to each.
// A nil source or two sources sharing a priority is an argument error.
func NewManager(opts Options) (*Manager, error) {
	const op = "configx.NewManager"

	sources := slices.Clone(opts.Sources)
	seen := make(map[int]sourcex.Source, len(sources))
	for i, ps := range sources {
		if ps.Source == nil {
			return nil, errors.Build(errors.CodeInvalidArgument).WithOp(op).
				WithMsgf("source at index %d is nil", i).Err()
		}
		if prev, dup := seen[ps.Priority]; dup {
			return nil, errors.Build(errors.CodeInvalidArgument).WithOp(op).
				WithMsgf("duplicate source priority %d: %s and %s", ps.Priority, SourceName(prev), SourceName(ps.Source)).Err()
		}
		seen[ps.Priority] = ps.Source
	}
	slices.SortStableFunc(sources, func(a, b PrioritizedSource) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	logger := opts.Logger
	if logger == nil {
		logger = logx.New()
	}
	executor := opts.Executor
	if executor == nil {
		executor = inlineExecutor{}
	}
	mx, err := newMetrics(opts.MeterProvider, opts.Name)
	if err != nil {
		return nil, errors.Wrapf(errors.CodeInternal, op, err, "register metrics")
	}

	m := &Manager{
		name:     opts.Name,
		sources:  sources,
		executor: executor,
		logger:   logx.Component(logger, "manager", opts.Name),
		metrics:  mx,
	}
	for _, ps := range sources {
		if err := ps.Source.AddChangeListener(m.onSourceChange); err != nil {
			return nil, errors.Wrapf(errors.CodeInvalidArgument, op, err, "subscribe to %s", SourceName(ps.Source))
		}
	}

	m.logger.Info("manager created", log.Int("sources", len(sources)))
	return m, nil
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// Sources returns the sources in descending priority order.
func (m *Manager) Sources() []PrioritizedSource {
	return slices.Clone(m.sources)
}

// Logger returns the manager's component logger.
func (m *Manager) Logger() log.Logger {
	return m.logger
}

// Executor returns the executor used for change notifications.
func (m *Manager) Executor() Executor {
	return m.executor
}

// Load returns the cached entry for key.
func (m *Manager) Load(key any) (*Entry, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// LoadOrCreate returns the cached entry for key, calling create under the
// manager lock when there is none. create runs at most once per key.
func (m *Manager) LoadOrCreate(key any, create func() (*Entry, error)) (*Entry, error) {
	if e, ok := m.Load(key); ok {
		return e, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.Load(key); ok {
		return e, nil
	}
	e, err := create()
	if err != nil {
		return nil, err
	}
	m.entries.Store(key, e)
	m.logger.Debug("property created", log.Any("key", key))
	return e, nil
}

// Entries returns a snapshot of every cached entry.
func (m *Manager) Entries() []*Entry {
	var out []*Entry
	m.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Entry))
		return true
	})
	return out
}

// Resolve walks the sources in priority order and returns the first value
// that is present, of the right type and accepted by the filter.
//
// A source that fails or panics is logged and skipped. A filter that panics
// is logged and the unfiltered value is kept.
func (m *Manager) Resolve(req sourcex.PropertyRequest, check Check) Resolution {
	ctx := context.Background()
	key := req.PropertyKey()

	for _, ps := range m.sources {
		name := SourceName(ps.Source)

		value, found, err := m.lookup(ps.Source, req)
		if err != nil {
			m.metrics.sourceFailed(ctx, name)
			m.logger.Error(err, "source lookup failed, skipping source", log.Str("source", name), log.Any("key", key))
			continue
		}
		if !found || typex.IsAbsent(value) {
			continue
		}
		if check.Accept != nil && !check.Accept(value) {
			m.logger.Warn("source value has the wrong type, skipping source",
				log.Str("source", name), log.Any("key", key), log.Str("type", fmt.Sprintf("%T", value)))
			continue
		}
		if check.Filter != nil {
			filtered, ok := m.filter(check.Filter, value, name, key)
			if !ok {
				m.metrics.filterRejected(ctx, name)
				m.logger.Warn("source value rejected by filter", log.Str("source", name), log.Any("key", key))
				continue
			}
			value = filtered
		}

		m.metrics.resolved(ctx, "source")
		return Resolution{Value: value, Source: ps.Source, Found: true}
	}

	m.metrics.resolved(ctx, "absent")
	return Resolution{}
}

func (m *Manager) lookup(src sourcex.Source, req sourcex.PropertyRequest) (value any, found bool, err error) {
	defer func() {
		if rerr := errors.Recovered("configx.lookup", recover()); rerr != nil {
			value, found, err = nil, false, rerr
		}
	}()
	return src.GetPropertyValue(req)
}

func (m *Manager) filter(fn func(any) (any, bool), value any, source string, key any) (out any, ok bool) {
	defer func() {
		if err := errors.Recovered("configx.filter", recover()); err != nil {
			m.logger.Error(err, "value filter failed, keeping unfiltered value", log.Str("source", source), log.Any("key", key))
			out, ok = value, true
		}
	}()
	return fn(value)
}

// AddChangeListener registers fn for every property change of this manager.
func (m *Manager) AddChangeListener(fn func(event any)) error {
	if fn == nil {
		return errors.New(errors.CodeInvalidArgument, "change listener is required")
	}
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
	return nil
}

func (m *Manager) onSourceChange(event sourcex.ChangeEvent) {
	m.logger.Debug("source changed", log.Str("source", SourceName(event.Source)))
	for _, change := range m.refreshAll() {
		m.dispatch(change)
	}
}

// refreshAll runs one change pass. Every new value is installed before any
// notification is dispatched.
func (m *Manager) refreshAll() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changes []Change
	m.entries.Range(func(_, v any) bool {
		e := v.(*Entry)
		if change, ok := m.refresh(e); ok {
			changes = append(changes, change)
			m.metrics.changed(context.Background())
		}
		return true
	})
	return changes
}

func (m *Manager) refresh(e *Entry) (change Change, ok bool) {
	defer func() {
		if err := errors.Recovered("configx.refresh", recover()); err != nil {
			m.logger.Error(err, "property refresh failed, keeping current value", log.Any("key", e.Key))
			change, ok = Change{}, false
		}
	}()
	return e.Refresh()
}

func (m *Manager) dispatch(change Change) {
	m.submit("property", change.Notify)
	m.submit("manager", func() {
		m.listenersMu.Lock()
		listeners := slices.Clone(m.listeners)
		m.listenersMu.Unlock()
		for _, fn := range listeners {
			m.notify(fn, change.Event)
		}
	})
}

func (m *Manager) submit(kind string, task func()) {
	defer func() {
		if err := errors.Recovered("configx.dispatch", recover()); err != nil {
			m.logger.Error(err, "task executor failed", log.Str("listeners", kind))
		}
	}()
	m.executor.Run(task)
}

func (m *Manager) notify(fn func(any), event any) {
	defer func() {
		if err := errors.Recovered("configx.notify", recover()); err != nil {
			m.logger.Error(err, "manager change listener failed")
		}
	}()
	fn(event)
}

// SourceName returns the configured name of src, tolerating a nil config.
func SourceName(src sourcex.Source) string {
	if src == nil {
		return ""
	}
	if cfg := src.Config(); cfg != nil {
		return cfg.Name
	}
	return fmt.Sprintf("%T", src)
}
