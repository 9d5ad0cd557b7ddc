package execshell

import (
	"fmt"
	"strings"
	"time"
)

const (
	startedMessageTemplateConstant          = "Running %s"
	completedMessageTemplateConstant        = "Completed %s in %s"
	failedMessageTemplateConstant           = "%s failed with exit code %d"
	failedWithDetailMessageTemplateConstant = "%s failed with exit code %d: %s"
	executionFailureMessageTemplateConstant = "%s failed: %v"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	versionArgumentConstant                 = "--version"
)

// CommandMessageFormatter renders human-readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, formatter.describe(command))
}

// BuildSuccessMessage describes a command that exited cleanly, rounded to milliseconds.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, duration time.Duration) string {
	return fmt.Sprintf(completedMessageTemplateConstant, formatter.describe(command), duration.Round(time.Millisecond))
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	excerpt := outputExcerpt(result, 1)
	if len(excerpt) == 0 {
		return fmt.Sprintf(failedMessageTemplateConstant, formatter.describe(command), result.ExitCode)
	}
	return fmt.Sprintf(failedWithDetailMessageTemplateConstant, formatter.describe(command), result.ExitCode, excerpt[0])
}

// BuildExecutionFailureMessage describes a command that could not be run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, runnerError error) string {
	return fmt.Sprintf(executionFailureMessageTemplateConstant, formatter.describe(command), runnerError)
}

// shouldLogStartMessage skips noise for version probes.
func (formatter CommandMessageFormatter) shouldLogStartMessage(command ShellCommand) bool {
	arguments := command.Details.Arguments
	return !(len(arguments) == 1 && arguments[0] == versionArgumentConstant && len(command.Details.WorkingDirectory) == 0)
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	description := strings.Join(parts, " ")
	if len(command.Details.WorkingDirectory) > 0 {
		description += fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
	}
	return description
}
