// Package typex defines type converters and the notion of an absent value.
//
// Overview:
//   - Responsibility: Turn raw source values into the type a property requests
//   - Key Types: Converter interface, typed converters built with New, Identity
//   - Concurrency Model: Converters are immutable and safe for concurrent use
//   - Error Semantics: Malformed input yields a CodeInvalidArgument error; blank input yields absent
//   - Performance Notes: Source and target types are computed once at construction
//
// A converter matches a raw value when the raw value's runtime type is
// assignable to SourceType, and it can serve a property of type V when
// TargetType is assignable to V. Converters compare by identity.
//
// Usage:
//
//	toPort := typex.New("string->port", func(s string) (uint16, error) { ... })
//	cfg, _ := configx.NewPropertyConfig(configx.PropertySpec[string, uint16]{
//		Key:             "server.port",
//		ValueConverters: []typex.Converter{toPort},
//	})
package typex

import (
	"fmt"
	"reflect"
	"strings"

	"go.eggybyte.com/scf/core/errors"
)

// Converter converts a value of SourceType into a value of TargetType.
type Converter interface {
	// SourceType is the type of raw values this converter accepts.
	SourceType() reflect.Type
	// TargetType is the type of the values this converter produces.
	TargetType() reflect.Type
	// Convert converts src. A nil result with a nil error means absent.
	Convert(src any) (any, error)
}

type funcConverter[S, T any] struct {
	name   string
	source reflect.Type
	target reflect.Type
	fn     func(S) (T, error)
}

// New builds a converter from S to T backed by fn.
// The name appears in error messages and in String.
func New[S, T any](name string, fn func(S) (T, error)) Converter {
	return &funcConverter[S, T]{
		name:   name,
		source: reflect.TypeFor[S](),
		target: reflect.TypeFor[T](),
		fn:     fn,
	}
}

func (c *funcConverter[S, T]) SourceType() reflect.Type { return c.source }

func (c *funcConverter[S, T]) TargetType() reflect.Type { return c.target }

func (c *funcConverter[S, T]) Convert(src any) (any, error) {
	s, ok := src.(S)
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidArgument, "%s: cannot accept value of type %T", c.name, src)
	}
	t, err := c.fn(s)
	if err != nil {
		if errors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrapf(errors.CodeInvalidArgument, c.name, err, "cannot convert %v", src)
	}
	if IsAbsent(t) {
		return nil, nil
	}
	return t, nil
}

func (c *funcConverter[S, T]) String() string {
	return fmt.Sprintf("%s(%s->%s)", c.name, c.source, c.target)
}

// Identity returns a converter that passes values of T through unchanged.
func Identity[T any]() Converter {
	return New(fmt.Sprintf("identity[%s]", reflect.TypeFor[T]()), func(v T) (T, error) {
		return v, nil
	})
}

// Accepts reports whether c can take raw as input.
func Accepts(c Converter, raw any) bool {
	if raw == nil {
		return false
	}
	return reflect.TypeOf(raw).AssignableTo(c.SourceType())
}

// Produces reports whether c's output can be stored in a value of type target.
func Produces(c Converter, target reflect.Type) bool {
	return c.TargetType().AssignableTo(target)
}

// IsAbsent reports whether v carries no usable value: nil, a nil pointer,
// interface, func or channel, a blank string, or an empty slice, map or array.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	default:
		return false
	}
}
