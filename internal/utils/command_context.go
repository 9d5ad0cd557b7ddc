package utils

import (
	"context"
	"strings"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	executionFlagsContextKeyConstant        = commandContextKey("executionFlags")
	logLevelContextKeyConstant              = commandContextKey("logLevel")
)

type commandContextKey string

// ExecutionFlags carries the build modifiers given on the command line.
// Each *Set field records whether the user passed the flag; unset flags defer to configuration.
type ExecutionFlags struct {
	Production    bool
	ProductionSet bool
	Workers       int
	WorkersSet    bool
	FailFast      bool
	FailFastSet   bool
}

// HasOverrides reports whether any execution flag was passed explicitly.
func (flags ExecutionFlags) HasOverrides() bool {
	return flags.ProductionSet || flags.WorkersSet || flags.FailFastSet
}

// WorkersOr returns the flag value when it was passed, otherwise the configured worker count.
func (flags ExecutionFlags) WorkersOr(configured int) int {
	if flags.WorkersSet {
		return flags.Workers
	}
	return configured
}

// FailFastOr returns the flag value when it was passed, otherwise the configured policy.
func (flags ExecutionFlags) FailFastOr(configured bool) bool {
	if flags.FailFastSet {
		return flags.FailFast
	}
	return configured
}

// CommandContextAccessor stores and reads per-invocation values on command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath records the configuration file that was loaded.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return withContextValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// WithExecutionFlags records the execution flags collected from the command line.
func (accessor CommandContextAccessor) WithExecutionFlags(parentContext context.Context, flags ExecutionFlags) context.Context {
	return withContextValue(parentContext, executionFlagsContextKeyConstant, flags)
}

// WithLogLevel records the effective log level. Blank levels leave the context unchanged.
func (accessor CommandContextAccessor) WithLogLevel(parentContext context.Context, logLevel string) context.Context {
	trimmedLogLevel := strings.TrimSpace(logLevel)
	if len(trimmedLogLevel) == 0 {
		return ensureContext(parentContext)
	}
	return withContextValue(parentContext, logLevelContextKeyConstant, trimmedLogLevel)
}

// ConfigurationFilePath returns the recorded configuration file path.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	return contextValue[string](executionContext, configurationFilePathContextKeyConstant)
}

// ExecutionFlags returns the recorded execution flags.
func (accessor CommandContextAccessor) ExecutionFlags(executionContext context.Context) (ExecutionFlags, bool) {
	return contextValue[ExecutionFlags](executionContext, executionFlagsContextKeyConstant)
}

// LogLevel returns the recorded log level.
func (accessor CommandContextAccessor) LogLevel(executionContext context.Context) (string, bool) {
	return contextValue[string](executionContext, logLevelContextKeyConstant)
}

func ensureContext(parentContext context.Context) context.Context {
	if parentContext == nil {
		return context.Background()
	}
	return parentContext
}

func withContextValue[Value any](parentContext context.Context, key commandContextKey, value Value) context.Context {
	return context.WithValue(ensureContext(parentContext), key, value)
}

func contextValue[Value any](executionContext context.Context, key commandContextKey) (Value, bool) {
	var zero Value
	if executionContext == nil {
		return zero, false
	}
	value, available := executionContext.Value(key).(Value)
	if !available {
		return zero, false
	}
	return value, true
}
