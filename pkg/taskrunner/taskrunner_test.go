package taskrunner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

type fakeExecutor struct {
	result taskgraph.RunResult
	err    error
}

func (executor fakeExecutor) Run(context.Context, []string, buildconfig.Configuration) (taskgraph.RunResult, error) {
	return executor.result, executor.err
}

func sampleResult() taskgraph.RunResult {
	return taskgraph.RunResult{
		Roots:  []string{"build"},
		Status: taskgraph.RunStatusFailed,
		Outcomes: []taskgraph.TaskOutcome{
			{Name: "copy:template", Status: taskgraph.TaskStatusSucceeded, Attempts: 1, Duration: 12 * time.Millisecond},
			{Name: "styles:compile", Status: taskgraph.TaskStatusFailed, Attempts: 1, Err: errors.New("main.scss:1:2: expected \"}\"")},
			{Name: "styles", Status: taskgraph.TaskStatusSkipped, Reason: "prerequisite \"styles:compile\" failed"},
		},
		Duration: 1500 * time.Millisecond,
	}
}

func TestRenderOutcomeLines(t *testing.T) {
	require.Equal(t, []string{
		"copy:template: succeeded (12ms)",
		"styles:compile: failed: main.scss:1:2: expected \"}\"",
		"styles: skipped (prerequisite \"styles:compile\" failed)",
	}, RenderOutcomeLines(sampleResult()))
}

func TestRenderSummaryLineFormatsCounts(t *testing.T) {
	summary := RenderSummaryLine(sampleResult())
	require.Equal(t, "Summary: roots=build status=failed total.tasks=3 succeeded=1 failed=1 skipped=1 duration_human=1.5s duration_ms=1500", summary)
}

func TestSummaryExecutorPrintsOutcomes(t *testing.T) {
	buffer := &bytes.Buffer{}
	executor := summaryExecutor{
		delegate:     fakeExecutor{result: sampleResult()},
		dependencies: Dependencies{Errors: buffer},
	}

	result, err := executor.Run(context.Background(), []string{"build"}, buildconfig.Configuration{})
	require.NoError(t, err)
	require.Equal(t, taskgraph.RunStatusFailed, result.Status)
	require.Contains(t, buffer.String(), "styles:compile: failed")
	require.Contains(t, buffer.String(), "Summary: roots=build")
}

func TestSummaryExecutorSilentOnConfigurationError(t *testing.T) {
	buffer := &bytes.Buffer{}
	executor := summaryExecutor{
		delegate:     fakeExecutor{err: taskgraph.UnknownTaskError{Task: "deploy"}},
		dependencies: Dependencies{Errors: buffer},
	}

	_, err := executor.Run(context.Background(), []string{"deploy"}, buildconfig.Configuration{})
	require.ErrorIs(t, err, taskgraph.ErrConfiguration)
	require.Empty(t, buffer.String())
}

func TestResolveUsesTaskGraphRunner(t *testing.T) {
	registry := taskgraph.NewRegistry()
	registry.MustRegister(taskgraph.Task{Name: "build", Action: taskgraph.NoopAction})
	buffer := &bytes.Buffer{}

	configuration, configurationError := buildconfig.New(buildconfig.ModeDevelopment, buildconfig.DefaultLayout())
	require.NoError(t, configurationError)

	executor := Resolve(nil, registry, Dependencies{Output: buffer}, taskgraph.WithWorkers(1))
	result, err := executor.Run(context.Background(), []string{"build"}, configuration)
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.Contains(t, buffer.String(), "build: succeeded")
}

func TestResolvePrefersFactory(t *testing.T) {
	executor := Resolve(func(*taskgraph.Registry, Dependencies) Executor {
		return fakeExecutor{result: taskgraph.RunResult{Status: taskgraph.RunStatusCancelled}}
	}, nil, Dependencies{DisableRunSummary: true})

	result, err := executor.Run(context.Background(), nil, buildconfig.Configuration{})
	require.NoError(t, err)
	require.Equal(t, taskgraph.RunStatusCancelled, result.Status)
}
