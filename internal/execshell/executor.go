// Package execshell runs the external asset tools and reports their lifecycle through zap.
package execshell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	sassCommandNameStringConstant             = "sass"
	postCSSCommandNameStringConstant          = "postcss"
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandNameMissingMessageConstant         = "shell command name not provided"
	commandStartEventConstant                 = "tool_started"
	commandSuccessEventConstant               = "tool_completed"
	commandFailureEventConstant               = "tool_failed"
	commandRunnerErrorEventConstant           = "tool_unavailable"
	commandNameFieldNameConstant              = "tool"
	commandArgumentsFieldNameConstant         = "arguments"
	workingDirectoryFieldNameConstant         = "working_directory"
	exitCodeFieldNameConstant                 = "exit_code"
	durationFieldNameConstant                 = "duration"
	standardErrorFieldNameConstant            = "stderr"
	commandFailureErrorTemplateConstant       = "%s exited with code %d"
	commandArgumentsSuffixTemplateConstant    = "%s (%s)"
	commandDetailSuffixTemplateConstant       = "%s: %s"
	commandExecutionErrorTemplateConstant     = "%s could not be started: %v"
	executableNotFoundErrorTemplateConstant   = "%s was not found on PATH"
	excerptSeparatorConstant                  = " | "
	failureExcerptLineLimitConstant           = 3
)

// CommandName identifies an executable by name or path.
type CommandName string

// Default executables for the external asset tools.
const (
	CommandSass    CommandName = CommandName(sassCommandNameStringConstant)
	CommandPostCSS CommandName = CommandName(postCSSCommandNameStringConstant)
)

// CommandDetails describes command invocation properties.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand represents a fully qualified command invocation.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures observable command results.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
	Duration       time.Duration
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ShellExecutor runs asset tools and logs when each starts, finishes or fails.
type ShellExecutor struct {
	commandRunner        CommandRunner
	logger               *zap.Logger
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	clock                func() time.Time
}

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the command runner dependency was missing.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
	// ErrCommandNameMissing indicates the command name was not provided.
	ErrCommandNameMissing = errors.New(commandNameMissingMessageConstant)
)

// CommandFailedError reports a tool that exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error names the tool, its arguments and the first lines of its diagnostics.
func (commandError CommandFailedError) Error() string {
	message := fmt.Sprintf(commandFailureErrorTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode)
	if len(commandError.Command.Details.Arguments) > 0 {
		message = fmt.Sprintf(commandArgumentsSuffixTemplateConstant, message, strings.Join(commandError.Command.Details.Arguments, " "))
	}
	if excerpt := outputExcerpt(commandError.Result, failureExcerptLineLimitConstant); len(excerpt) > 0 {
		message = fmt.Sprintf(commandDetailSuffixTemplateConstant, message, strings.Join(excerpt, excerptSeparatorConstant))
	}
	return message
}

// CommandExecutionError reports a tool that could not be started at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the underlying runner failure.
func (executionError CommandExecutionError) Error() string {
	if errors.Is(executionError.Cause, exec.ErrNotFound) {
		return fmt.Sprintf(executableNotFoundErrorTemplateConstant, executionError.Command.Name)
	}
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying error.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// NewShellExecutor builds an executor for the provided runner and logger.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		commandRunner:        commandRunner,
		logger:               logger,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
		clock:                time.Now,
	}, nil
}

// Execute runs the command and records its wall-clock duration in the result.
// A non-zero exit becomes CommandFailedError; a runner failure becomes CommandExecutionError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(command.Name) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}

	executor.logStarted(command)
	startedAt := executor.clock()
	executionResult, runnerError := executor.commandRunner.Run(executionContext, command)
	executionResult.Duration = executor.clock().Sub(startedAt)

	switch {
	case runnerError != nil:
		executionError := CommandExecutionError{Command: command, Cause: runnerError}
		if executor.humanReadableLogging {
			executor.logger.Error(executor.messageFormatter.BuildExecutionFailureMessage(command, runnerError))
		} else {
			executor.logger.Error(commandRunnerErrorEventConstant,
				zap.String(commandNameFieldNameConstant, string(command.Name)),
				zap.Error(runnerError),
			)
		}
		return ExecutionResult{}, executionError
	case executionResult.ExitCode != 0:
		if executor.humanReadableLogging {
			executor.logger.Warn(executor.messageFormatter.BuildFailureMessage(command, executionResult))
		} else {
			executor.logger.Warn(commandFailureEventConstant,
				zap.String(commandNameFieldNameConstant, string(command.Name)),
				zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode),
				zap.Duration(durationFieldNameConstant, executionResult.Duration),
				zap.String(standardErrorFieldNameConstant, executionResult.StandardError),
			)
		}
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildSuccessMessage(command, executionResult.Duration))
	} else {
		executor.logger.Info(commandSuccessEventConstant,
			zap.String(commandNameFieldNameConstant, string(command.Name)),
			zap.Duration(durationFieldNameConstant, executionResult.Duration),
		)
	}
	return executionResult, nil
}

// ExecuteSass runs the sass executable with the provided details.
func (executor *ShellExecutor) ExecuteSass(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandSass, Details: details})
}

// ExecutePostCSS runs the postcss executable with the provided details.
func (executor *ShellExecutor) ExecutePostCSS(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandPostCSS, Details: details})
}

func (executor *ShellExecutor) logStarted(command ShellCommand) {
	if executor.humanReadableLogging {
		if executor.messageFormatter.shouldLogStartMessage(command) {
			executor.logger.Debug(executor.messageFormatter.BuildStartedMessage(command))
		}
		return
	}
	executor.logger.Debug(commandStartEventConstant,
		zap.String(commandNameFieldNameConstant, string(command.Name)),
		zap.Strings(commandArgumentsFieldNameConstant, command.Details.Arguments),
		zap.String(workingDirectoryFieldNameConstant, command.Details.WorkingDirectory),
	)
}

// outputExcerpt returns up to lineLimit non-blank lines of stderr, or of stdout when stderr is empty.
func outputExcerpt(result ExecutionResult, lineLimit int) []string {
	detail := strings.TrimSpace(result.StandardError)
	if len(detail) == 0 {
		detail = strings.TrimSpace(result.StandardOutput)
	}
	if len(detail) == 0 {
		return nil
	}

	excerpt := make([]string, 0, lineLimit)
	for _, line := range strings.Split(detail, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		excerpt = append(excerpt, trimmed)
		if len(excerpt) == lineLimit {
			break
		}
	}
	return excerpt
}

func cloneEnvironment(environment map[string]string) map[string]string {
	if len(environment) == 0 {
		return map[string]string{}
	}
	cloned := make(map[string]string, len(environment))
	for key, value := range environment {
		cloned[key] = value
	}
	return cloned
}
