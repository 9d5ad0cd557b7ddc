// Package tasks builds the Cobra commands that run, watch, serve and list the asset build tasks.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/assets"
	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/frontend"
	"github.com/tyemirov/assetflow/internal/taskgraph"
	flagutils "github.com/tyemirov/assetflow/internal/utils/flags"
	"github.com/tyemirov/assetflow/internal/watch"
	"github.com/tyemirov/assetflow/pkg/taskrunner"
)

const (
	runFailedTemplate     = "run of %s %s"
	failedTasksTemplate   = "%s (failed: %s)"
	configurationLogEvent = "build_configuration"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Environment bundles the providers shared by every task command.
type Environment struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	CommandExecutor              assets.CommandExecutor
	TaskRunnerFactory            taskrunner.Factory
}

// RunFailedError reports a run that did not end in success.
type RunFailedError struct {
	Roots       []string
	Status      taskgraph.RunStatus
	FailedTasks []string
}

// Error implements the error interface.
func (failure RunFailedError) Error() string {
	message := fmt.Sprintf(runFailedTemplate, strings.Join(failure.Roots, ","), failure.Status)
	if len(failure.FailedTasks) == 0 {
		return message
	}
	return fmt.Sprintf(failedTasksTemplate, message, strings.Join(failure.FailedTasks, ", "))
}

// ResultError converts an unsuccessful run result into a RunFailedError.
func ResultError(result taskgraph.RunResult) error {
	if result.Succeeded() {
		return nil
	}
	failedTasks := make([]string, 0)
	for _, outcome := range result.Failed() {
		failedTasks = append(failedTasks, outcome.Name)
	}
	return RunFailedError{
		Roots:       append([]string(nil), result.Roots...),
		Status:      result.Status,
		FailedTasks: failedTasks,
	}
}

type session struct {
	configuration Configuration
	build         buildconfig.Configuration
	dependencies  taskrunner.Dependencies
	registry      *taskgraph.Registry
	executor      taskrunner.Executor
}

// CleanPolicy decides whether a command registers the clean task ahead of every writing task.
type CleanPolicy int

// Clean policies.
const (
	// CleanNever keeps existing output, as watch-triggered runs must.
	CleanNever CleanPolicy = iota
	// CleanConfigured follows build.clean from the configuration.
	CleanConfigured
	// CleanAlways registers the clean task regardless of configuration.
	CleanAlways
)

func (policy CleanPolicy) enabled(configuration Configuration) bool {
	switch policy {
	case CleanAlways:
		return true
	case CleanConfigured:
		return configuration.Build.Clean
	default:
		return false
	}
}

type sessionOptions struct {
	cleanPolicy       CleanPolicy
	disableRunSummary bool
}

func (environment Environment) resolveConfiguration() Configuration {
	if environment.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return environment.ConfigurationProvider().Sanitize()
}

func (environment Environment) humanReadable() bool {
	if environment.HumanReadableLoggingProvider == nil {
		return false
	}
	return environment.HumanReadableLoggingProvider()
}

func (environment Environment) prepare(command *cobra.Command, options sessionOptions) (session, error) {
	configuration := environment.resolveConfiguration()

	executionFlags, _ := flagutils.ResolveExecutionFlags(command)
	mode := configuration.Build.Mode
	if executionFlags.ProductionSet {
		mode = buildconfig.ModeFromProductionFlag(executionFlags.Production)
	}
	workers := executionFlags.WorkersOr(configuration.Build.Workers)
	failFast := executionFlags.FailFastOr(configuration.Build.FailFast)

	layout, layoutError := configuration.Build.Layout.Layout()
	if layoutError != nil {
		return session{}, layoutError
	}
	buildConfiguration, buildError := buildconfig.New(mode, layout)
	if buildError != nil {
		return session{}, buildError
	}

	dependencies, dependencyError := taskrunner.BuildDependencies(
		taskrunner.DependenciesConfig{
			LoggerProvider:               environment.LoggerProvider,
			HumanReadableLoggingProvider: environment.humanReadable,
			CommandExecutor:              environment.CommandExecutor,
			ToolchainSettings:            configuration.Toolchain.ToolchainSettings(),
		},
		taskrunner.DependenciesOptions{
			Command:           command,
			DisableRunSummary: options.disableRunSummary,
		},
	)
	if dependencyError != nil {
		return session{}, dependencyError
	}

	clean := options.cleanPolicy.enabled(configuration)
	registry, registryError := frontend.NewRegistry(dependencies.Toolchain, frontend.CatalogOptions{
		Clean:        clean,
		ScriptOutput: configuration.Build.ScriptOutput,
		Layout:       layout,
	})
	if registryError != nil {
		return session{}, registryError
	}

	dependencies.Logger.Debug(
		configurationLogEvent,
		zap.Strings("configuration", buildConfiguration.Describe()),
		zap.Int("workers", workers),
		zap.Bool("fail_fast", failFast),
		zap.Bool("clean", clean),
	)

	executor := taskrunner.Resolve(
		environment.TaskRunnerFactory,
		registry,
		dependencies,
		taskgraph.WithWorkers(workers),
		taskgraph.WithFailFast(failFast),
	)

	return session{
		configuration: configuration,
		build:         buildConfiguration,
		dependencies:  dependencies,
		registry:      registry,
		executor:      executor,
	}, nil
}

func (runSession session) run(executionContext context.Context, roots []string) (taskgraph.RunResult, error) {
	return runSession.executor.Run(executionContext, roots, runSession.build)
}

func (runSession session) watch(executionContext context.Context, options ...watch.Option) error {
	watcherOptions := append([]watch.Option{
		watch.WithLogger(runSession.dependencies.Logger),
		watch.WithDebounce(runSession.configuration.Watch.Debounce),
	}, options...)
	watcher := watch.NewWatcher(watcherOptions...)
	return watcher.Watch(executionContext, watch.Bindings(runSession.registry), func(runContext context.Context, taskName string) (taskgraph.RunResult, error) {
		return runSession.run(runContext, []string{taskName})
	})
}
