package taskgraph_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

type executionRecorder struct {
	mutex    sync.Mutex
	started  []string
	finished map[string]int
	counts   map[string]int
}

func newExecutionRecorder() *executionRecorder {
	return &executionRecorder{finished: make(map[string]int), counts: make(map[string]int)}
}

func (recorder *executionRecorder) action(name string, actionError error) taskgraph.Action {
	return func(context.Context, buildconfig.Configuration) error {
		recorder.mutex.Lock()
		recorder.started = append(recorder.started, name)
		recorder.counts[name]++
		recorder.mutex.Unlock()

		time.Sleep(time.Millisecond)

		recorder.mutex.Lock()
		recorder.finished[name] = len(recorder.finished)
		recorder.mutex.Unlock()
		return actionError
	}
}

func (recorder *executionRecorder) startIndex(name string) int {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	for index, startedName := range recorder.started {
		if startedName == name {
			return index
		}
	}
	return -1
}

func testConfiguration(testInstance *testing.T) buildconfig.Configuration {
	testInstance.Helper()
	configuration, configurationError := buildconfig.New(buildconfig.ModeDevelopment, buildconfig.DefaultLayout())
	require.NoError(testInstance, configurationError)
	return configuration
}

func fastRetries() taskgraph.RunnerOption {
	return taskgraph.WithRetryBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	})
}

func TestRunExecutesEveryTaskOnceAfterPrerequisites(testInstance *testing.T) {
	recorder := newExecutionRecorder()
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "clean", Action: recorder.action("clean", nil)},
		taskgraph.Task{Name: "styles", Prerequisites: []string{"clean"}, Action: recorder.action("styles", nil)},
		taskgraph.Task{Name: "scripts", Prerequisites: []string{"clean"}, Action: recorder.action("scripts", nil)},
		taskgraph.Task{Name: "build", Prerequisites: []string{"styles", "scripts"}, Action: recorder.action("build", nil)},
	)

	runner := taskgraph.NewRunner(registry, taskgraph.WithWorkers(4))
	result, runError := runner.Run(context.Background(), []string{"build", "styles"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusSucceeded, result.Status)
	require.True(testInstance, result.Succeeded())
	require.Equal(testInstance, []string{"clean", "styles", "scripts", "build"}, result.Order)

	for _, name := range []string{"clean", "styles", "scripts", "build"} {
		require.Equal(testInstance, 1, recorder.counts[name], name)
		outcome, found := result.Outcome(name)
		require.True(testInstance, found)
		require.Equal(testInstance, taskgraph.TaskStatusSucceeded, outcome.Status)
		require.Equal(testInstance, 1, outcome.Attempts)
	}

	require.Less(testInstance, recorder.finished["clean"], recorder.finished["styles"])
	require.Less(testInstance, recorder.finished["clean"], recorder.finished["scripts"])
	require.Less(testInstance, recorder.finished["styles"], recorder.finished["build"])
	require.Less(testInstance, recorder.finished["scripts"], recorder.finished["build"])
	require.Equal(testInstance, 3, recorder.startIndex("build"))
	require.Equal(testInstance, taskgraph.StatusCounts{Succeeded: 4}, result.Counts())
}

func TestRunSkipsDependentsOfFailedTaskAndContinuesIndependentBranches(testInstance *testing.T) {
	actionError := errors.New("malformed input")
	recorder := newExecutionRecorder()
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "A", Action: recorder.action("A", actionError)},
		taskgraph.Task{Name: "B", Prerequisites: []string{"A"}, Action: recorder.action("B", nil)},
		taskgraph.Task{Name: "D", Prerequisites: []string{"B"}, Action: recorder.action("D", nil)},
		taskgraph.Task{Name: "C", Action: recorder.action("C", nil)},
	)

	runner := taskgraph.NewRunner(registry, taskgraph.WithWorkers(1))
	result, runError := runner.Run(context.Background(), []string{"D", "C"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusFailed, result.Status)

	failedOutcome, _ := result.Outcome("A")
	require.Equal(testInstance, taskgraph.TaskStatusFailed, failedOutcome.Status)
	require.ErrorIs(testInstance, failedOutcome.Err, actionError)
	var actionFailure taskgraph.ActionFailure
	require.True(testInstance, errors.As(failedOutcome.Err, &actionFailure))
	require.Equal(testInstance, "A", actionFailure.Task)
	require.Contains(testInstance, failedOutcome.Err.Error(), "malformed input")

	for _, dependentName := range []string{"B", "D"} {
		dependentOutcome, _ := result.Outcome(dependentName)
		require.Equal(testInstance, taskgraph.TaskStatusSkipped, dependentOutcome.Status)
		require.Contains(testInstance, dependentOutcome.Reason, `"A"`)
		require.Zero(testInstance, recorder.counts[dependentName])
	}

	independentOutcome, _ := result.Outcome("C")
	require.Equal(testInstance, taskgraph.TaskStatusSucceeded, independentOutcome.Status)
	require.Len(testInstance, result.Failed(), 1)
	require.Equal(testInstance, taskgraph.StatusCounts{Succeeded: 1, Failed: 1, Skipped: 2}, result.Counts())
}

func TestRunFailFastStopsStartingTasks(testInstance *testing.T) {
	recorder := newExecutionRecorder()
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "A", Action: recorder.action("A", errors.New("boom"))},
		taskgraph.Task{Name: "C", Action: recorder.action("C", nil)},
	)

	runner := taskgraph.NewRunner(registry, taskgraph.WithWorkers(1), taskgraph.WithFailFast(true))
	result, runError := runner.Run(context.Background(), []string{"A", "C"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusFailed, result.Status)

	skippedOutcome, _ := result.Outcome("C")
	require.Equal(testInstance, taskgraph.TaskStatusSkipped, skippedOutcome.Status)
	require.Contains(testInstance, skippedOutcome.Reason, "stopped")
	require.Zero(testInstance, recorder.counts["C"])
}

func TestRunCancellationLetsStartedActionsFinish(testInstance *testing.T) {
	runContext, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	var actionContextError error
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "A", Action: func(actionContext context.Context, _ buildconfig.Configuration) error {
			cancelRun()
			time.Sleep(5 * time.Millisecond)
			actionContextError = actionContext.Err()
			return nil
		}},
		taskgraph.Task{Name: "B", Prerequisites: []string{"A"}, Action: taskgraph.NoopAction},
		taskgraph.Task{Name: "C", Action: taskgraph.NoopAction},
	)

	runner := taskgraph.NewRunner(registry, taskgraph.WithWorkers(1))
	result, runError := runner.Run(runContext, []string{"B", "C"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusCancelled, result.Status)
	require.NoError(testInstance, actionContextError)

	startedOutcome, _ := result.Outcome("A")
	require.Equal(testInstance, taskgraph.TaskStatusSucceeded, startedOutcome.Status)
	for _, name := range []string{"B", "C"} {
		outcome, _ := result.Outcome(name)
		require.Equal(testInstance, taskgraph.TaskStatusSkipped, outcome.Status)
		require.Equal(testInstance, "run cancelled", outcome.Reason)
	}
}

func TestRunWithCancelledContextStartsNothing(testInstance *testing.T) {
	runContext, cancelRun := context.WithCancel(context.Background())
	cancelRun()

	recorder := newExecutionRecorder()
	registry := taskgraph.NewRegistry()
	registry.MustRegister(taskgraph.Task{Name: "A", Action: recorder.action("A", nil)})

	result, runError := taskgraph.NewRunner(registry).Run(runContext, []string{"A"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusCancelled, result.Status)
	require.Zero(testInstance, recorder.counts["A"])
}

func TestRunCancelledAfterLastTaskStartedStillSucceeds(testInstance *testing.T) {
	runContext, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "styles", Action: taskgraph.NoopAction},
		taskgraph.Task{Name: "build", Prerequisites: []string{"styles"}, Action: func(context.Context, buildconfig.Configuration) error {
			cancelRun()
			return nil
		}},
	)

	result, runError := taskgraph.NewRunner(registry, taskgraph.WithWorkers(1)).Run(runContext, []string{"build"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusSucceeded, result.Status)
	for _, name := range []string{"styles", "build"} {
		outcome, _ := result.Outcome(name)
		require.Equal(testInstance, taskgraph.TaskStatusSucceeded, outcome.Status, name)
	}
}

func TestRunRetriesFailingActions(testInstance *testing.T) {
	testCases := []struct {
		name             string
		retries          uint64
		failuresBeforeOK int
		expectedStatus   taskgraph.TaskStatus
		expectedAttempts int
	}{
		{name: "recovers_within_budget", retries: 3, failuresBeforeOK: 2, expectedStatus: taskgraph.TaskStatusSucceeded, expectedAttempts: 3},
		{name: "exhausts_budget", retries: 1, failuresBeforeOK: 5, expectedStatus: taskgraph.TaskStatusFailed, expectedAttempts: 2},
		{name: "no_retries", retries: 0, failuresBeforeOK: 1, expectedStatus: taskgraph.TaskStatusFailed, expectedAttempts: 1},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			var invocationCount atomic.Int32
			registry := taskgraph.NewRegistry()
			registry.MustRegister(taskgraph.Task{
				Name:    "flaky",
				Retries: testCase.retries,
				Action: func(context.Context, buildconfig.Configuration) error {
					if int(invocationCount.Add(1)) <= testCase.failuresBeforeOK {
						return errors.New("temporary failure")
					}
					return nil
				},
			})

			result, runError := taskgraph.NewRunner(registry, fastRetries()).Run(context.Background(), []string{"flaky"}, testConfiguration(subTest))
			require.NoError(subTest, runError)

			outcome, _ := result.Outcome("flaky")
			require.Equal(subTest, testCase.expectedStatus, outcome.Status)
			require.Equal(subTest, testCase.expectedAttempts, outcome.Attempts)
		})
	}
}

func TestRunRecoversPanickingActions(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "explodes", Retries: 3, Action: func(context.Context, buildconfig.Configuration) error {
			panic("unexpected state")
		}},
		taskgraph.Task{Name: "after", Prerequisites: []string{"explodes"}, Action: taskgraph.NoopAction},
	)

	result, runError := taskgraph.NewRunner(registry, fastRetries()).Run(context.Background(), []string{"after"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)

	outcome, _ := result.Outcome("explodes")
	require.Equal(testInstance, taskgraph.TaskStatusFailed, outcome.Status)
	require.Equal(testInstance, 1, outcome.Attempts)
	var panicError taskgraph.PanicError
	require.True(testInstance, errors.As(outcome.Err, &panicError))
	require.Equal(testInstance, "unexpected state", panicError.Value)

	dependentOutcome, _ := result.Outcome("after")
	require.Equal(testInstance, taskgraph.TaskStatusSkipped, dependentOutcome.Status)
}

func TestRunRespectsWorkerLimit(testInstance *testing.T) {
	var running atomic.Int32
	var maximumRunning atomic.Int32
	pairStarted := make(chan struct{})
	var closePair sync.Once
	boundedAction := func(context.Context, buildconfig.Configuration) error {
		current := running.Add(1)
		for {
			observed := maximumRunning.Load()
			if current <= observed || maximumRunning.CompareAndSwap(observed, current) {
				break
			}
		}
		if current >= 2 {
			closePair.Do(func() { close(pairStarted) })
		}
		select {
		case <-pairStarted:
		case <-time.After(2 * time.Second):
		}
		running.Add(-1)
		return nil
	}

	registry := taskgraph.NewRegistry()
	roots := make([]string, 0, 6)
	for taskIndex := 0; taskIndex < 6; taskIndex++ {
		name := fmt.Sprintf("task-%d", taskIndex)
		roots = append(roots, name)
		registry.MustRegister(taskgraph.Task{Name: name, Action: boundedAction})
	}

	runner := taskgraph.NewRunner(registry, taskgraph.WithWorkers(2))
	require.Equal(testInstance, 2, runner.Workers())
	result, runError := runner.Run(context.Background(), roots, testConfiguration(testInstance))
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusSucceeded, result.Status)
	require.Equal(testInstance, int32(2), maximumRunning.Load())
}

func TestRunReturnsConfigurationErrorsBeforeStarting(testInstance *testing.T) {
	recorder := newExecutionRecorder()
	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "A", Prerequisites: []string{"B"}, Action: recorder.action("A", nil)},
		taskgraph.Task{Name: "B", Prerequisites: []string{"A"}, Action: recorder.action("B", nil)},
		taskgraph.Task{Name: "C", Action: recorder.action("C", nil)},
	)

	result, runError := taskgraph.NewRunner(registry).Run(context.Background(), []string{"C"}, testConfiguration(testInstance))
	require.Error(testInstance, runError)
	require.ErrorIs(testInstance, runError, taskgraph.ErrConfiguration)
	require.Equal(testInstance, taskgraph.RunStatusFailed, result.Status)
	require.Empty(testInstance, result.Outcomes)
	require.Zero(testInstance, recorder.counts["C"])
}

func TestRunReportsLifecycleEvents(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	var eventsMutex sync.Mutex
	eventKinds := make(map[string][]taskgraph.TaskEventKind)

	registry := taskgraph.NewRegistry()
	registry.MustRegister(
		taskgraph.Task{Name: "fails", Action: func(context.Context, buildconfig.Configuration) error { return errors.New("bad") }},
		taskgraph.Task{Name: "dependent", Prerequisites: []string{"fails"}, Action: taskgraph.NoopAction},
	)

	runner := taskgraph.NewRunner(
		registry,
		taskgraph.WithLogger(zap.New(observedCore)),
		taskgraph.WithObserver(func(event taskgraph.TaskEvent) {
			eventsMutex.Lock()
			defer eventsMutex.Unlock()
			eventKinds[event.Task] = append(eventKinds[event.Task], event.Kind)
		}),
	)
	_, runError := runner.Run(context.Background(), []string{"dependent"}, testConfiguration(testInstance))
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []taskgraph.TaskEventKind{taskgraph.TaskEventStarted, taskgraph.TaskEventFailed}, eventKinds["fails"])
	require.Equal(testInstance, []taskgraph.TaskEventKind{taskgraph.TaskEventSkipped}, eventKinds["dependent"])

	require.Equal(testInstance, 1, observedLogs.FilterMessage("task_failed").Len())
	require.Equal(testInstance, 1, observedLogs.FilterMessage("task_skipped").Len())
	completion := observedLogs.FilterMessage("run_complete").All()
	require.Len(testInstance, completion, 1)
	require.Equal(testInstance, "failed", completion[0].ContextMap()["status"])
}
