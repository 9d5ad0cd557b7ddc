package taskrunner

import (
	"context"
	"fmt"
	"io"

	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

// Executor runs task roots against a build configuration.
type Executor interface {
	Run(ctx context.Context, roots []string, configuration buildconfig.Configuration) (taskgraph.RunResult, error)
}

// Factory constructs an Executor for a registry and its dependencies.
type Factory func(registry *taskgraph.Registry, dependencies Dependencies) Executor

// Resolve returns either the provided factory result or a taskgraph runner configured with
// runnerOptions, wrapped so every run prints its outcome lines and summary.
func Resolve(factory Factory, registry *taskgraph.Registry, dependencies Dependencies, runnerOptions ...taskgraph.RunnerOption) Executor {
	var base Executor
	if factory != nil {
		base = factory(registry, dependencies)
	}
	if base == nil {
		options := append([]taskgraph.RunnerOption{taskgraph.WithLogger(dependencies.Logger)}, runnerOptions...)
		base = taskgraph.NewRunner(registry, options...)
	}
	return summaryExecutor{
		delegate:     base,
		dependencies: dependencies,
	}
}

type summaryExecutor struct {
	delegate     Executor
	dependencies Dependencies
}

func (executor summaryExecutor) Run(ctx context.Context, roots []string, configuration buildconfig.Configuration) (taskgraph.RunResult, error) {
	result, err := executor.delegate.Run(ctx, roots, configuration)
	if err == nil {
		executor.printSummary(result)
	}
	return result, err
}

func (executor summaryExecutor) printSummary(result taskgraph.RunResult) {
	if executor.dependencies.DisableRunSummary {
		return
	}
	writer := executor.summaryWriter()
	if writer == nil {
		return
	}
	for _, line := range RenderOutcomeLines(result) {
		fmt.Fprintln(writer, line)
	}
	fmt.Fprintln(writer, RenderSummaryLine(result))
}

func (executor summaryExecutor) summaryWriter() io.Writer {
	if executor.dependencies.Errors != nil {
		return executor.dependencies.Errors
	}
	if executor.dependencies.Output != nil {
		return executor.dependencies.Output
	}
	return nil
}
