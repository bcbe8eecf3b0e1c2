package internal

import (
	"context"
	"sync"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
)

// Executor is a fixed-size worker pool. Tasks submitted while the pool is
// not running, or while its queue is full, run on the caller so that no task
// is ever dropped.
type Executor struct {
	logger    log.Logger
	workers   int
	queueSize int

	mu      sync.RWMutex
	running bool
	queue   chan func()
	wg      sync.WaitGroup
}

// NewExecutor creates a stopped executor.
func NewExecutor(logger log.Logger, workers, queueSize int) *Executor {
	return &Executor{
		logger:    logger,
		workers:   workers,
		queueSize: queueSize,
	}
}

// Start launches the workers.
func (e *Executor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "runtimex.Executor.Start", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New(errors.CodeInvalidArgument, "executor already started")
	}

	e.queue = make(chan func(), e.queueSize)
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.work(e.queue)
	}
	e.running = true
	e.logger.Info("executor started", log.Int("workers", e.workers), log.Int("queue_size", e.queueSize))
	return nil
}

// Stop stops accepting queued work and waits for the workers to drain the
// queue or for ctx to expire.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("executor stop timed out, workers still draining")
		return errors.Wrap(errors.CodeUnavailable, "runtimex.Executor.Stop", ctx.Err())
	}
}

// Running reports whether the workers are active.
func (e *Executor) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Run schedules task.
func (e *Executor) Run(task func()) {
	if task == nil {
		return
	}

	e.mu.RLock()
	if e.running {
		select {
		case e.queue <- task:
			e.mu.RUnlock()
			return
		default:
			e.logger.Debug("executor queue full, running task inline")
		}
	}
	e.mu.RUnlock()

	e.execute(task)
}

func (e *Executor) work(queue <-chan func()) {
	defer e.wg.Done()
	for task := range queue {
		e.execute(task)
	}
}

func (e *Executor) execute(task func()) {
	defer func() {
		if err := errors.Recovered("runtimex.Executor", recover()); err != nil {
			e.logger.Error(err, "task failed")
		}
	}()
	task()
}
