package internal

import (
	"context"
	"slices"
	"sync"

	"go.eggybyte.com/scf/core/errors"
)

// HealthChecker defines the interface for health checks.
// Implementations should perform quick checks and honor context deadlines.
type HealthChecker interface {
	// Name returns the name of the health check.
	Name() string
	// Check performs the health check and returns an error if unhealthy.
	Check(ctx context.Context) error
}

// Health holds the checkers served by the health endpoint.
type Health struct {
	mu       sync.RWMutex
	checkers []HealthChecker
}

// Register adds checker. Nil checkers are ignored.
func (h *Health) Register(checker HealthChecker) {
	if checker == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// Check runs all checkers in registration order.
// Returns nil if all checks pass, otherwise the first failure wrapped with
// the checker name.
func (h *Health) Check(ctx context.Context) error {
	h.mu.RLock()
	checkers := slices.Clone(h.checkers)
	h.mu.RUnlock()

	for _, checker := range checkers {
		if err := checker.Check(ctx); err != nil {
			return errors.Wrapf(errors.CodeUnavailable, "runtimex.health", err, "%s", checker.Name())
		}
	}
	return nil
}
