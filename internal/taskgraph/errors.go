package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration groups every task graph definition error detected before a run starts.
	ErrConfiguration = errors.New("task graph configuration error")
)

const (
	cycleSeparatorConstant = " -> "
)

// InvalidTaskError reports a task definition that cannot be registered.
type InvalidTaskError struct {
	Task   string
	Reason string
}

// Error describes the invalid definition.
func (invalidError InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task %q: %s", invalidError.Task, invalidError.Reason)
}

// Is matches ErrConfiguration.
func (invalidError InvalidTaskError) Is(target error) bool {
	return target == ErrConfiguration
}

// DuplicateTaskError reports a second registration of the same task name.
type DuplicateTaskError struct {
	Task string
}

// Error names the duplicated task.
func (duplicateError DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", duplicateError.Task)
}

// Is matches ErrConfiguration.
func (duplicateError DuplicateTaskError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnknownPrerequisiteError reports a prerequisite that was never registered.
type UnknownPrerequisiteError struct {
	Task         string
	Prerequisite string
}

// Error names the task and the missing prerequisite.
func (unknownError UnknownPrerequisiteError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", unknownError.Task, unknownError.Prerequisite)
}

// Is matches ErrConfiguration.
func (unknownError UnknownPrerequisiteError) Is(target error) bool {
	return target == ErrConfiguration
}

// CycleDetectedError reports a prerequisite cycle. Cycle starts and ends with the same task.
type CycleDetectedError struct {
	Cycle []string
}

// Error renders the cycle path.
func (cycleError CycleDetectedError) Error() string {
	return fmt.Sprintf("task prerequisites form a cycle: %s", strings.Join(cycleError.Cycle, cycleSeparatorConstant))
}

// Is matches ErrConfiguration.
func (cycleError CycleDetectedError) Is(target error) bool {
	return target == ErrConfiguration
}

// Tasks returns the distinct task names on the cycle.
func (cycleError CycleDetectedError) Tasks() []string {
	if len(cycleError.Cycle) <= 1 {
		return append([]string(nil), cycleError.Cycle...)
	}
	return append([]string(nil), cycleError.Cycle[:len(cycleError.Cycle)-1]...)
}

// OverlappingOutputError reports two unordered tasks that declare intersecting output scopes.
type OverlappingOutputError struct {
	FirstTask    string
	FirstOutput  string
	SecondTask   string
	SecondOutput string
}

// Error names both tasks and their scopes.
func (overlapError OverlappingOutputError) Error() string {
	return fmt.Sprintf(
		"tasks %q (%s) and %q (%s) write overlapping outputs without a prerequisite between them",
		overlapError.FirstTask,
		overlapError.FirstOutput,
		overlapError.SecondTask,
		overlapError.SecondOutput,
	)
}

// Is matches ErrConfiguration.
func (overlapError OverlappingOutputError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnknownTaskError reports a requested root task that is not registered.
type UnknownTaskError struct {
	Task string
}

// Error names the unknown task.
func (unknownError UnknownTaskError) Error() string {
	return fmt.Sprintf("task %q is not registered", unknownError.Task)
}

// Is matches ErrConfiguration.
func (unknownError UnknownTaskError) Is(target error) bool {
	return target == ErrConfiguration
}

// ActionFailure wraps the error returned by a task action.
type ActionFailure struct {
	Task  string
	Cause error
}

// Error names the task and cause.
func (failure ActionFailure) Error() string {
	if failure.Cause == nil {
		return fmt.Sprintf("task %q failed", failure.Task)
	}
	return fmt.Sprintf("task %q failed: %v", failure.Task, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure ActionFailure) Unwrap() error {
	return failure.Cause
}

// PanicError carries a value recovered from a panicking action.
type PanicError struct {
	Value any
	Stack []byte
}

// Error renders the recovered value.
func (panicError PanicError) Error() string {
	return fmt.Sprintf("action panicked: %v", panicError.Value)
}
