package taskgraph

import (
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultRetryInitialIntervalConstant = 250 * time.Millisecond
	defaultRetryMaxIntervalConstant     = 5 * time.Second
)

// RetryBackOffFactory creates a fresh back-off policy for each retried task.
type RetryBackOffFactory func() backoff.BackOff

// TaskEventKind classifies runner notifications.
type TaskEventKind string

// Task event kinds.
const (
	TaskEventStarted   TaskEventKind = "started"
	TaskEventRetrying  TaskEventKind = "retrying"
	TaskEventSucceeded TaskEventKind = "succeeded"
	TaskEventFailed    TaskEventKind = "failed"
	TaskEventSkipped   TaskEventKind = "skipped"
)

// TaskEvent is delivered to observers as tasks progress. Outcome is populated for terminal kinds.
type TaskEvent struct {
	Kind    TaskEventKind
	Task    string
	Attempt int
	Outcome TaskOutcome
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for task lifecycle events.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(runner *Runner) {
		if logger != nil {
			runner.logger = logger
		}
	}
}

// WithWorkers bounds the number of actions running at once. Non-positive values use every CPU.
func WithWorkers(workers int) RunnerOption {
	return func(runner *Runner) {
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		runner.workers = workers
	}
}

// WithFailFast stops starting new tasks after the first failure when enabled.
func WithFailFast(failFast bool) RunnerOption {
	return func(runner *Runner) {
		runner.failFast = failFast
	}
}

// WithRetryBackOff replaces the back-off policy used between retries.
func WithRetryBackOff(factory RetryBackOffFactory) RunnerOption {
	return func(runner *Runner) {
		if factory != nil {
			runner.backOffFactory = factory
		}
	}
}

// WithObserver registers a callback receiving task events. Calls are serialized.
func WithObserver(observer func(TaskEvent)) RunnerOption {
	return func(runner *Runner) {
		runner.observer = observer
	}
}

func defaultRetryBackOff() backoff.BackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = defaultRetryInitialIntervalConstant
	exponentialBackOff.MaxInterval = defaultRetryMaxIntervalConstant
	return exponentialBackOff
}
