package configx

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/sourcex"
)

// AnyProperty is the untyped view of a Property, used where the key and
// value types are not known statically.
type AnyProperty interface {
	PropertyKey() any
	AnyValue() any
	Source() sourcex.Source
	ConfigString() string
	String() string
}

// ChangeEvent is the untyped view of a PropertyChangeEvent delivered to
// manager listeners.
type ChangeEvent interface {
	Key() any
	AnyProperty() AnyProperty
	Old() any
	New() any
	ChangeTime() time.Time
}

// PropertyChangeEvent reports that a property value was replaced. Events are
// immutable.
type PropertyChangeEvent[K comparable, V any] struct {
	property   *Property[K, V]
	oldValue   V
	newValue   V
	changeTime time.Time
}

func (e *PropertyChangeEvent[K, V]) Property() *Property[K, V] { return e.property }
func (e *PropertyChangeEvent[K, V]) OldValue() V               { return e.oldValue }
func (e *PropertyChangeEvent[K, V]) NewValue() V               { return e.newValue }
func (e *PropertyChangeEvent[K, V]) ChangeTime() time.Time     { return e.changeTime }

func (e *PropertyChangeEvent[K, V]) Key() any                 { return e.property.config.key }
func (e *PropertyChangeEvent[K, V]) AnyProperty() AnyProperty { return e.property }
func (e *PropertyChangeEvent[K, V]) Old() any                 { return e.oldValue }
func (e *PropertyChangeEvent[K, V]) New() any                 { return e.newValue }

func (e *PropertyChangeEvent[K, V]) String() string {
	return fmt.Sprintf("PropertyChangeEvent{key=%v, old=%v, new=%v, time=%s}",
		e.property.config.key, e.oldValue, e.newValue, e.changeTime.Format(time.RFC3339Nano))
}

type propertyState[V any] struct {
	value  V
	source sourcex.Source
}

// Property is a live, typed configuration value. A manager creates exactly
// one Property per key and updates it in place when its sources change.
// Value and Source never block.
type Property[K comparable, V any] struct {
	config *PropertyConfig[K, V]
	logger log.Logger
	state  atomic.Pointer[propertyState[V]]

	mu        sync.Mutex
	listeners []func(*PropertyChangeEvent[K, V])
}

func newProperty[K comparable, V any](cfg *PropertyConfig[K, V], value V, src sourcex.Source, logger log.Logger) *Property[K, V] {
	p := &Property[K, V]{
		config: cfg,
		logger: logger.With(log.Any("key", cfg.key)),
	}
	p.state.Store(&propertyState[V]{value: value, source: src})
	return p
}

func (p *Property[K, V]) Config() *PropertyConfig[K, V] {
	return p.config
}

// Key returns the property key.
func (p *Property[K, V]) Key() K {
	return p.config.key
}

// Value returns the current value.
func (p *Property[K, V]) Value() V {
	return p.state.Load().value
}

// Source returns the source the current value came from, or nil when the
// value is the default or absent.
func (p *Property[K, V]) Source() sourcex.Source {
	return p.state.Load().source
}

// AddChangeListener registers fn for every later change of this property.
func (p *Property[K, V]) AddChangeListener(fn func(*PropertyChangeEvent[K, V])) error {
	if fn == nil {
		return errors.New(errors.CodeInvalidArgument, "change listener is required")
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return nil
}

func (p *Property[K, V]) PropertyKey() any {
	return p.config.key
}

func (p *Property[K, V]) AnyValue() any {
	return p.Value()
}

func (p *Property[K, V]) ConfigString() string {
	return p.config.String()
}

func (p *Property[K, V]) String() string {
	st := p.state.Load()
	src := "<none>"
	if st.source != nil {
		src = sourceName(st.source)
	}
	return fmt.Sprintf("Property{key=%v, value=%v, source=%s}", p.config.key, st.value, src)
}

// swap installs a new state and returns the event describing the change.
func (p *Property[K, V]) swap(value V, src sourcex.Source, at time.Time) *PropertyChangeEvent[K, V] {
	old := p.state.Swap(&propertyState[V]{value: value, source: src})
	return &PropertyChangeEvent[K, V]{
		property:   p,
		oldValue:   old.value,
		newValue:   value,
		changeTime: at,
	}
}

func (p *Property[K, V]) raise(event *PropertyChangeEvent[K, V]) {
	p.mu.Lock()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		p.notify(fn, event)
	}
}

func (p *Property[K, V]) notify(fn func(*PropertyChangeEvent[K, V]), event *PropertyChangeEvent[K, V]) {
	defer func() {
		if err := errors.Recovered("configx.Property.notify", recover()); err != nil {
			p.logger.Error(err, "property change listener failed")
		}
	}()
	fn(event)
}
