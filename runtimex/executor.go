package runtimex

import (
	"context"

	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/logx"
	"go.eggybyte.com/scf/runtimex/internal"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Workers   int        `validate:"gte=0"` // Worker goroutines (default 1)
	QueueSize int        `validate:"gte=0"` // Buffered tasks before falling back to the caller (default 64)
	Logger    log.Logger `validate:"-"`
}

// Executor runs tasks on a worker pool. It satisfies configx.TaskExecutor
// and Service. Before Start and after Stop every task runs on the caller.
type Executor struct {
	impl *internal.Executor
}

// NewExecutor creates a stopped executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if err := validate.Struct("runtimex.NewExecutor", opts); err != nil {
		return nil, err
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = logx.New()
	}
	return &Executor{
		impl: internal.NewExecutor(logx.Component(logger, "executor", "tasks"), opts.Workers, opts.QueueSize),
	}, nil
}

// Run schedules task. Panics are recovered and logged.
func (e *Executor) Run(task func()) {
	e.impl.Run(task)
}

// Start launches the workers.
func (e *Executor) Start(ctx context.Context) error {
	return e.impl.Start(ctx)
}

// Stop waits for queued tasks to finish or ctx to expire.
func (e *Executor) Stop(ctx context.Context) error {
	return e.impl.Stop(ctx)
}

// Running reports whether the worker pool is active.
func (e *Executor) Running() bool {
	return e.impl.Running()
}
