package configx

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/filterx"
	"go.eggybyte.com/scf/typex"
)

// PropertySpec lists the fields of a PropertyConfig. Zero fields mean
// "not set": a zero DefaultValue is no default, a nil ValueComparator uses
// structural equality.
type PropertySpec[K comparable, V any] struct {
	Key             K
	DefaultValue    V
	ValueConverters []typex.Converter
	// ValueFilter and the converters run while the manager holds its
	// property lock. They must not call GetProperty on the same manager,
	// which would deadlock on first creation of a key.
	ValueFilter     filterx.Filter[V]
	ValueComparator func(a, b V) int
	Required        bool
	Static          bool
	Doc             string
}

// PropertyConfig is the immutable description of one property. Build it
// with NewPropertyConfig and reuse the same value for every lookup of the
// key; a manager refuses a key requested with a different config.
type PropertyConfig[K comparable, V any] struct {
	key          K
	defaultValue V
	hasDefault   bool
	converters   []typex.Converter
	filter       filterx.Filter[V]
	comparator   func(a, b V) int
	required     bool
	static       bool
	doc          string
}

// NewPropertyConfig validates spec and builds a PropertyConfig. The key must
// be comparable and not blank. Nil converters are dropped.
func NewPropertyConfig[K comparable, V any](spec PropertySpec[K, V]) (*PropertyConfig[K, V], error) {
	const op = "configx.NewPropertyConfig"

	key := any(spec.Key)
	if typex.IsAbsent(key) {
		return nil, errors.Build(errors.CodeInvalidArgument).WithOp(op).WithMsg("key is required").Err()
	}
	if !reflect.ValueOf(key).Comparable() {
		return nil, errors.Build(errors.CodeInvalidArgument).WithOp(op).
			WithMsgf("key of type %T is not comparable", key).Err()
	}

	def := any(spec.DefaultValue)
	return &PropertyConfig[K, V]{
		key:          spec.Key,
		defaultValue: spec.DefaultValue,
		hasDefault:   !typex.IsAbsent(def) && !reflect.ValueOf(def).IsZero(),
		converters:   slices.DeleteFunc(slices.Clone(spec.ValueConverters), func(c typex.Converter) bool { return c == nil }),
		filter:       spec.ValueFilter,
		comparator:   spec.ValueComparator,
		required:     spec.Required,
		static:       spec.Static,
		doc:          spec.Doc,
	}, nil
}

// MustPropertyConfig is like NewPropertyConfig but panics on an invalid spec.
func MustPropertyConfig[K comparable, V any](spec PropertySpec[K, V]) *PropertyConfig[K, V] {
	cfg, err := NewPropertyConfig(spec)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *PropertyConfig[K, V]) Key() K {
	return c.key
}

// DefaultValue returns the default and whether one was set.
func (c *PropertyConfig[K, V]) DefaultValue() (V, bool) {
	return c.defaultValue, c.hasDefault
}

func (c *PropertyConfig[K, V]) ValueFilter() filterx.Filter[V] {
	return c.filter
}

func (c *PropertyConfig[K, V]) ValueComparator() func(a, b V) int {
	return c.comparator
}

func (c *PropertyConfig[K, V]) IsRequired() bool {
	return c.required
}

func (c *PropertyConfig[K, V]) IsStatic() bool {
	return c.static
}

func (c *PropertyConfig[K, V]) Doc() string {
	return c.doc
}

// PropertyKey returns the key as seen by sources.
func (c *PropertyConfig[K, V]) PropertyKey() any {
	return c.key
}

// ValueType returns the reflect.Type of V.
func (c *PropertyConfig[K, V]) ValueType() reflect.Type {
	return reflect.TypeFor[V]()
}

// ValueConverters returns a copy of the converters in declaration order.
func (c *PropertyConfig[K, V]) ValueConverters() []typex.Converter {
	return slices.Clone(c.converters)
}

// Equal reports whether c and o describe the same property. Converters and
// the filter compare by identity, the comparator by function pointer.
func (c *PropertyConfig[K, V]) Equal(o *PropertyConfig[K, V]) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	return c.key == o.key &&
		c.hasDefault == o.hasDefault &&
		reflect.DeepEqual(c.defaultValue, o.defaultValue) &&
		slices.EqualFunc(c.converters, o.converters, func(a, b typex.Converter) bool { return sameInstance(a, b) }) &&
		sameInstance(c.filter, o.filter) &&
		sameFunc(c.comparator, o.comparator) &&
		c.required == o.required &&
		c.static == o.static &&
		c.doc == o.doc
}

func (c *PropertyConfig[K, V]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PropertyConfig{key=%v, type=%s", c.key, c.ValueType())
	if c.hasDefault {
		fmt.Fprintf(&b, ", default=%v", c.defaultValue)
	}
	if len(c.converters) > 0 {
		fmt.Fprintf(&b, ", converters=%v", c.converters)
	}
	if c.filter != nil {
		fmt.Fprintf(&b, ", filter=%T", c.filter)
	}
	if c.comparator != nil {
		b.WriteString(", comparator=custom")
	}
	fmt.Fprintf(&b, ", required=%t, static=%t", c.required, c.static)
	if c.doc != "" {
		fmt.Fprintf(&b, ", doc=%q", c.doc)
	}
	b.WriteString("}")
	return b.String()
}

// compare returns 0 when a and b are the same value.
func (c *PropertyConfig[K, V]) compare(a, b V) int {
	if c.comparator != nil {
		return c.comparator(a, b)
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

// sameInstance compares comparable values with ==, functions by code pointer
// and anything else structurally.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch {
	case va.Comparable():
		return va.Equal(vb)
	case va.Kind() == reflect.Func:
		return va.Pointer() == vb.Pointer()
	default:
		return reflect.DeepEqual(a, b)
	}
}

func sameFunc[V any](a, b func(V, V) int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
