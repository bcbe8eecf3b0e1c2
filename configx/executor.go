package configx

// TaskExecutor runs change notifications. Implementations may run the task
// on another goroutine; they must not drop it.
type TaskExecutor interface {
	Run(task func())
}

// TaskExecutorFunc adapts a function to TaskExecutor.
type TaskExecutorFunc func(task func())

func (f TaskExecutorFunc) Run(task func()) {
	f(task)
}

// InlineExecutor runs every task on the calling goroutine. It is the default.
type InlineExecutor struct{}

func (InlineExecutor) Run(task func()) {
	task()
}
