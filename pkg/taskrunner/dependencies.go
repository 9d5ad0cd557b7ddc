package taskrunner

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/assets"
	"github.com/tyemirov/assetflow/internal/execshell"
)

// DependenciesConfig captures providers required to build run dependencies.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	CommandRunner                execshell.CommandRunner
	CommandExecutor              assets.CommandExecutor
	ToolchainSettings            assets.ToolchainSettings
}

// DependenciesOptions allows per-command overrides when resolving run dependencies.
type DependenciesOptions struct {
	Command           *cobra.Command
	Output            io.Writer
	Errors            io.Writer
	DisableRunSummary bool
}

// Dependencies groups the collaborators shared by a command's runs.
type Dependencies struct {
	Logger               *zap.Logger
	CommandExecutor      assets.CommandExecutor
	Toolchain            assets.Toolchain
	Output               io.Writer
	Errors               io.Writer
	HumanReadableLogging bool
	DisableRunSummary    bool
}

// BuildDependencies resolves the logger, command executor, asset toolchain and output writers.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (Dependencies, error) {
	logger := resolveLogger(config.LoggerProvider)
	humanReadable := false
	if config.HumanReadableLoggingProvider != nil {
		humanReadable = config.HumanReadableLoggingProvider()
	}

	commandExecutor := config.CommandExecutor
	if commandExecutor == nil {
		commandRunner := config.CommandRunner
		if commandRunner == nil {
			commandRunner = execshell.OSCommandRunner{}
		}
		shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
		if executorError != nil {
			return Dependencies{}, fmt.Errorf("taskrunner.dependencies.command_executor: %w", executorError)
		}
		commandExecutor = shellExecutor
	}

	return Dependencies{
		Logger:               logger,
		CommandExecutor:      commandExecutor,
		Toolchain:            assets.NewToolchain(commandExecutor, config.ToolchainSettings, logger),
		Output:               resolveWriter(options.Output, options.Command, true),
		Errors:               resolveWriter(options.Errors, options.Command, false),
		HumanReadableLogging: humanReadable,
		DisableRunSummary:    options.DisableRunSummary,
	}, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil && writer != io.Discard {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil && writer != io.Discard {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
