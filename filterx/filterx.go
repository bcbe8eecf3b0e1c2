// Package filterx provides value filters applied to resolved property values.
//
// Overview:
//   - Responsibility: Validate or transform a converted value before it is accepted
//   - Key Types: Filter interface, Func adapter, Pipeline, Range, Default
//   - Concurrency Model: Filters built here are immutable and safe for concurrent use
//   - Error Semantics: Construction errors carry CodeInvalidArgument; rejection is a false result, not an error
//   - Performance Notes: Pipelines stop at the first rejection
//
// Usage:
//
//	ports, _ := filterx.NewRange(1024, 65535)
//	f, err := filterx.NewPipeline[int](ports, filterx.Func[int](roundToHundred))
//	v, ok := f.Filter(8080)
package filterx

import (
	"cmp"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/typex"
)

// Filter validates or transforms a value. Returning false rejects the value,
// which the manager treats as absent for the source that produced it.
type Filter[V any] interface {
	Filter(v V) (V, bool)
}

// Func adapts an ordinary function to Filter.
type Func[V any] func(v V) (V, bool)

// Filter calls f(v).
func (f Func[V]) Filter(v V) (V, bool) {
	return f(v)
}

// Pipeline applies its filters in order and rejects as soon as one rejects.
type Pipeline[V any] struct {
	filters []Filter[V]
}

// NewPipeline builds a Pipeline. Nil filters are dropped; an empty list is an error.
func NewPipeline[V any](filters ...Filter[V]) (*Pipeline[V], error) {
	kept := make([]Filter[V], 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument, "pipeline requires at least one filter")
	}
	return &Pipeline[V]{filters: kept}, nil
}

// Filter runs v through every filter.
func (p *Pipeline[V]) Filter(v V) (V, bool) {
	var zero V
	for _, f := range p.filters {
		next, ok := f.Filter(v)
		if !ok || typex.IsAbsent(next) {
			return zero, false
		}
		v = next
	}
	return v, true
}

// Len reports the number of filters in the pipeline.
func (p *Pipeline[V]) Len() int {
	return len(p.filters)
}

// Range keeps values inside the closed interval [Lower, Upper].
type Range[V cmp.Ordered] struct {
	Lower V
	Upper V
}

// NewRange builds a Range. lower must not exceed upper.
func NewRange[V cmp.Ordered](lower, upper V) (*Range[V], error) {
	if cmp.Compare(lower, upper) > 0 {
		return nil, errors.Newf(errors.CodeInvalidArgument, "range lower bound %v exceeds upper bound %v", lower, upper)
	}
	return &Range[V]{Lower: lower, Upper: upper}, nil
}

// Filter rejects values outside the range.
func (r *Range[V]) Filter(v V) (V, bool) {
	if cmp.Compare(v, r.Lower) < 0 || cmp.Compare(v, r.Upper) > 0 {
		var zero V
		return zero, false
	}
	return v, true
}

// Default replaces absent values with a fallback. Present values pass unchanged.
func Default[V any](fallback V) Filter[V] {
	return Func[V](func(v V) (V, bool) {
		if typex.IsAbsent(v) {
			return fallback, true
		}
		return v, true
	})
}
