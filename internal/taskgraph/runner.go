package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tyemirov/assetflow/internal/buildconfig"
)

const (
	runCancelledReasonConstant        = "run cancelled"
	prerequisiteFailedReasonTemplate  = "prerequisite %q failed"
	failFastStoppedReasonTemplate     = "run stopped after %q failed"
	runPlanErrorTemplateConstant      = "taskgraph.run: %w"
	taskStartedLogMessageConstant     = "task_started"
	taskRetryingLogMessageConstant    = "task_retrying"
	taskSucceededLogMessageConstant   = "task_succeeded"
	taskFailedLogMessageConstant      = "task_failed"
	taskSkippedLogMessageConstant     = "task_skipped"
	runCompleteLogMessageConstant     = "run_complete"
	runCancellationLogMessageConstant = "run_cancellation_requested"
	taskFieldNameConstant             = "task"
)

// Runner executes a registry's tasks as a dependency graph.
type Runner struct {
	registry       *Registry
	logger         *zap.Logger
	workers        int
	failFast       bool
	backOffFactory RetryBackOffFactory
	observer       func(TaskEvent)
	observerMutex  sync.Mutex
	now            func() time.Time
}

// NewRunner constructs a Runner over the registry.
func NewRunner(registry *Registry, options ...RunnerOption) *Runner {
	runner := &Runner{
		registry:       registry,
		logger:         zap.NewNop(),
		workers:        runtime.NumCPU(),
		backOffFactory: defaultRetryBackOff,
		now:            time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	return runner
}

// Workers returns the configured concurrency bound.
func (runner *Runner) Workers() int {
	return runner.workers
}

type runState struct {
	tasks                  map[string]Task
	registrationIndex      map[string]int
	remainingPrerequisites map[string]int
	dependents             map[string][]string
	outcomes               map[string]TaskOutcome
	ready                  []string
}

func newRunState(plan []Task, registrationOrder []string) *runState {
	state := &runState{
		tasks:                  make(map[string]Task, len(plan)),
		registrationIndex:      make(map[string]int, len(registrationOrder)),
		remainingPrerequisites: make(map[string]int, len(plan)),
		dependents:             make(map[string][]string, len(plan)),
		outcomes:               make(map[string]TaskOutcome, len(plan)),
	}
	for index, name := range registrationOrder {
		state.registrationIndex[name] = index
	}
	for _, task := range plan {
		state.tasks[task.Name] = task
		state.remainingPrerequisites[task.Name] = len(task.Prerequisites)
		for _, prerequisite := range task.Prerequisites {
			state.dependents[prerequisite] = append(state.dependents[prerequisite], task.Name)
		}
		if len(task.Prerequisites) == 0 {
			state.ready = append(state.ready, task.Name)
		}
	}
	return state
}

// undecided counts planned tasks that have neither finished nor been skipped.
func (state *runState) undecided() int {
	return len(state.tasks) - len(state.outcomes)
}

func (state *runState) sortReady() {
	sort.Slice(state.ready, func(left, right int) bool {
		return state.registrationIndex[state.ready[left]] < state.registrationIndex[state.ready[right]]
	})
}

// Run executes the closure of roots. The returned error is non-nil only when the graph is
// misconfigured, in which case no task has started. Task failures and cancellation are
// reported through the RunResult.
func (runner *Runner) Run(executionContext context.Context, roots []string, configuration buildconfig.Configuration) (RunResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	result := RunResult{Roots: append([]string(nil), roots...)}

	plan, planError := runner.registry.Plan(roots)
	if planError != nil {
		result.Status = RunStatusFailed
		return result, fmt.Errorf(runPlanErrorTemplateConstant, planError)
	}

	result.StartTime = runner.now()
	result.Order = make([]string, 0, len(plan))
	for _, task := range plan {
		result.Order = append(result.Order, task.Name)
	}

	state := newRunState(plan, runner.registry.Names())
	workerSemaphore := semaphore.NewWeighted(int64(runner.workers))
	completions := make(chan TaskOutcome, len(plan))
	actionContext := context.WithoutCancel(executionContext)
	cancellationChannel := executionContext.Done()
	runningCount := 0
	stopReason := ""
	cancelled := false

	for {
		if len(stopReason) == 0 && executionContext.Err() != nil && state.undecided() > 0 {
			cancelled = true
			stopReason = runCancelledReasonConstant
			runner.logger.Info(runCancellationLogMessageConstant, zap.Int("running", runningCount))
		}

		if len(stopReason) == 0 {
			state.sortReady()
			for len(state.ready) > 0 && workerSemaphore.TryAcquire(1) {
				taskName := state.ready[0]
				state.ready = state.ready[1:]
				runningCount++
				task := state.tasks[taskName]
				runner.logger.Debug(taskStartedLogMessageConstant, zap.String(taskFieldNameConstant, taskName))
				runner.notify(TaskEvent{Kind: TaskEventStarted, Task: taskName, Attempt: 1})
				go func(startedTask Task) {
					outcome := runner.executeTask(executionContext, actionContext, startedTask, configuration)
					workerSemaphore.Release(1)
					completions <- outcome
				}(task)
			}
		}

		if runningCount == 0 {
			break
		}

		select {
		case outcome := <-completions:
			runningCount--
			runner.recordOutcome(state, outcome)
			if outcome.Status == TaskStatusFailed {
				runner.skipDependents(state, outcome.Name, fmt.Sprintf(prerequisiteFailedReasonTemplate, outcome.Name))
				if runner.failFast && len(stopReason) == 0 {
					stopReason = fmt.Sprintf(failFastStoppedReasonTemplate, outcome.Name)
				}
				continue
			}
			for _, dependent := range state.dependents[outcome.Name] {
				state.remainingPrerequisites[dependent]--
				if state.remainingPrerequisites[dependent] != 0 {
					continue
				}
				if _, decided := state.outcomes[dependent]; decided {
					continue
				}
				state.ready = append(state.ready, dependent)
			}
		case <-cancellationChannel:
			cancellationChannel = nil
		}
	}

	stoppedCount := 0
	for _, taskName := range result.Order {
		if _, decided := state.outcomes[taskName]; decided {
			continue
		}
		runner.recordOutcome(state, TaskOutcome{Name: taskName, Status: TaskStatusSkipped, Reason: stopReason})
		stoppedCount++
	}

	result.Outcomes = make([]TaskOutcome, 0, len(result.Order))
	for _, taskName := range result.Order {
		result.Outcomes = append(result.Outcomes, state.outcomes[taskName])
	}

	switch {
	case cancelled && stoppedCount > 0:
		result.Status = RunStatusCancelled
	case len(result.Failed()) > 0:
		result.Status = RunStatusFailed
	default:
		result.Status = RunStatusSucceeded
	}
	result.EndTime = runner.now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	counts := result.Counts()
	runner.logger.Info(
		runCompleteLogMessageConstant,
		zap.Strings("roots", result.Roots),
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", counts.Succeeded),
		zap.Int("failed", counts.Failed),
		zap.Int("skipped", counts.Skipped),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

func (runner *Runner) skipDependents(state *runState, failedTask string, reason string) {
	for _, dependent := range state.dependents[failedTask] {
		if _, decided := state.outcomes[dependent]; decided {
			continue
		}
		runner.recordOutcome(state, TaskOutcome{Name: dependent, Status: TaskStatusSkipped, Reason: reason})
		runner.skipDependents(state, dependent, reason)
	}
}

func (runner *Runner) recordOutcome(state *runState, outcome TaskOutcome) {
	state.outcomes[outcome.Name] = outcome

	switch outcome.Status {
	case TaskStatusSucceeded:
		runner.logger.Info(
			taskSucceededLogMessageConstant,
			zap.String(taskFieldNameConstant, outcome.Name),
			zap.Int("attempts", outcome.Attempts),
			zap.Duration("duration", outcome.Duration),
		)
		runner.notify(TaskEvent{Kind: TaskEventSucceeded, Task: outcome.Name, Attempt: outcome.Attempts, Outcome: outcome})
	case TaskStatusFailed:
		runner.logger.Error(
			taskFailedLogMessageConstant,
			zap.String(taskFieldNameConstant, outcome.Name),
			zap.Int("attempts", outcome.Attempts),
			zap.Duration("duration", outcome.Duration),
			zap.Error(outcome.Err),
		)
		runner.notify(TaskEvent{Kind: TaskEventFailed, Task: outcome.Name, Attempt: outcome.Attempts, Outcome: outcome})
	case TaskStatusSkipped:
		runner.logger.Warn(
			taskSkippedLogMessageConstant,
			zap.String(taskFieldNameConstant, outcome.Name),
			zap.String("reason", outcome.Reason),
		)
		runner.notify(TaskEvent{Kind: TaskEventSkipped, Task: outcome.Name, Outcome: outcome})
	}
}

func (runner *Runner) executeTask(runContext context.Context, actionContext context.Context, task Task, configuration buildconfig.Configuration) TaskOutcome {
	startTime := runner.now()
	attempts := 0
	var lastActionError error

	operation := func() error {
		attempts++
		if attempts > 1 {
			runner.logger.Warn(
				taskRetryingLogMessageConstant,
				zap.String(taskFieldNameConstant, task.Name),
				zap.Int("attempt", attempts),
				zap.Error(lastActionError),
			)
			runner.notify(TaskEvent{Kind: TaskEventRetrying, Task: task.Name, Attempt: attempts})
		}
		lastActionError = invokeAction(actionContext, task, configuration)
		var panicError PanicError
		if errors.As(lastActionError, &panicError) {
			return backoff.Permanent(lastActionError)
		}
		return lastActionError
	}

	var retryError error
	if task.Retries == 0 {
		retryError = operation()
	} else {
		retryPolicy := backoff.WithContext(backoff.WithMaxRetries(runner.backOffFactory(), task.Retries), runContext)
		retryError = backoff.Retry(operation, retryPolicy)
	}

	outcome := TaskOutcome{
		Name:      task.Name,
		Status:    TaskStatusSucceeded,
		Attempts:  attempts,
		StartTime: startTime,
		Duration:  runner.now().Sub(startTime),
	}
	if retryError != nil {
		cause := lastActionError
		if cause == nil {
			cause = retryError
		}
		outcome.Status = TaskStatusFailed
		outcome.Err = ActionFailure{Task: task.Name, Cause: cause}
		outcome.Reason = cause.Error()
	}
	return outcome
}

func invokeAction(actionContext context.Context, task Task, configuration buildconfig.Configuration) (actionError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			actionError = PanicError{Value: recovered, Stack: debug.Stack()}
		}
	}()
	return task.Action(actionContext, configuration)
}

func (runner *Runner) notify(event TaskEvent) {
	if runner.observer == nil {
		return
	}
	runner.observerMutex.Lock()
	defer runner.observerMutex.Unlock()
	runner.observer(event)
}
