package sourcex

import (
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
)

// BreakerOptions configures a BreakerSource.
type BreakerOptions struct {
	FailureThreshold uint32        // Consecutive failures that open the circuit (default: 5)
	MaxRequests      uint32        // Trial requests allowed while half-open (default: 1)
	Timeout          time.Duration // Open duration before half-opening (default: 30s)
	Logger           log.Logger    // Logger for state transitions (default: logx.New())
}

// BreakerSource guards a slow or failing source with a circuit breaker. While
// the circuit is open lookups fail fast with CodeUnavailable, which the
// manager treats as absent for this source. Conversion errors
// (CodeInvalidArgument) are returned but never count towards opening it. Change events of the wrapped
// source are forwarded with their original change time.
type BreakerSource struct {
	*Base
	inner Source
	cb    *gobreaker.CircuitBreaker
}

type lookupResult struct {
	value any
	found bool
}

// NewBreakerSource wraps inner. The wrapper shares inner's Config.
func NewBreakerSource(inner Source, opts BreakerOptions) (*BreakerSource, error) {
	if inner == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "inner source is required")
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.MaxRequests == 0 {
		opts.MaxRequests = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	s := &BreakerSource{inner: inner}
	s.Base = NewBase(s, inner.Config(), opts.Logger, nil)
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Config().Name,
		MaxRequests: opts.MaxRequests,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// A value that fails conversion is a caller problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.IsCode(err, errors.CodeInvalidArgument)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.Logger().Warn("source circuit state changed", log.Str("from", from.String()), log.Str("to", to.String()))
		},
	})

	if err := inner.AddChangeListener(func(e ChangeEvent) { s.RaiseChangeAt(e.ChangeTime) }); err != nil {
		return nil, err
	}
	return s, nil
}

// State reports the circuit state.
func (s *BreakerSource) State() gobreaker.State {
	return s.cb.State()
}

// Inner returns the wrapped source.
func (s *BreakerSource) Inner() Source {
	return s.inner
}

// GetPropertyValue looks req up in the wrapped source through the breaker.
func (s *BreakerSource) GetPropertyValue(req PropertyRequest) (any, bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		v, found, err := s.inner.GetPropertyValue(req)
		return lookupResult{value: v, found: found}, err
	})
	if err != nil {
		return nil, false, s.unavailable(err)
	}
	r := res.(lookupResult)
	return r.value, r.found, nil
}

// GetStringValue reads key from the wrapped source through the breaker.
// It is absent when the wrapped source is not a StringSource.
func (s *BreakerSource) GetStringValue(key string) (string, bool, error) {
	ss, ok := s.inner.(StringSource)
	if !ok {
		return "", false, nil
	}
	res, err := s.cb.Execute(func() (interface{}, error) {
		v, found, err := ss.GetStringValue(key)
		return lookupResult{value: v, found: found}, err
	})
	if err != nil {
		return "", false, s.unavailable(err)
	}
	r := res.(lookupResult)
	v, _ := r.value.(string)
	return v, r.found, nil
}

func (s *BreakerSource) unavailable(err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrapf(errors.CodeUnavailable, "sourcex.BreakerSource", err, "source %s unavailable", s.Config().Name)
	}
	return err
}
