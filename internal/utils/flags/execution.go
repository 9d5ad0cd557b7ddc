// Package flags provides helpers for binding standardized build flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// ProductionFlagName exposes the shared production toggle name.
	ProductionFlagName = "production"
	// ProductionFlagUsage describes the production toggle.
	ProductionFlagUsage = "Build with production post-processing (minification, no source maps)"
	// WorkersFlagName exposes the shared worker limit flag name.
	WorkersFlagName = "workers"
	// WorkersFlagShorthand provides the shorthand for the worker limit flag.
	WorkersFlagShorthand = "j"
	// WorkersFlagUsage describes the worker limit flag.
	WorkersFlagUsage = "Maximum number of tasks running at once (0 uses every CPU)"
	// FailFastFlagName exposes the shared fail-fast toggle name.
	FailFastFlagName = "fail-fast"
	// FailFastFlagUsage describes the fail-fast toggle.
	FailFastFlagUsage = "Stop starting new tasks after the first failure"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	Production bool
	Workers    int
	FailFast   bool
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	Production ExecutionFlagDefinition
	Workers    ExecutionFlagDefinition
	FailFast   ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables every shared build flag with its standard name.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		Production: ExecutionFlagDefinition{Name: ProductionFlagName, Usage: ProductionFlagUsage, Enabled: true},
		Workers:    ExecutionFlagDefinition{Name: WorkersFlagName, Usage: WorkersFlagUsage, Shorthand: WorkersFlagShorthand, Enabled: true},
		FailFast:   ExecutionFlagDefinition{Name: FailFastFlagName, Usage: FailFastFlagUsage, Enabled: true},
	}
}

// BindExecutionFlags attaches standardized execution flags to the provided command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	persistentFlagSet := command.PersistentFlags()

	bindToggleFlag(persistentFlagSet, definitions.Production, defaults.Production)
	bindToggleFlag(persistentFlagSet, definitions.FailFast, defaults.FailFast)

	if definitions.Workers.Enabled && len(definitions.Workers.Name) > 0 && persistentFlagSet.Lookup(definitions.Workers.Name) == nil {
		persistentFlagSet.IntP(definitions.Workers.Name, definitions.Workers.Shorthand, defaults.Workers, definitions.Workers.Usage)
	}
}

func bindToggleFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if flagSet == nil {
		return
	}
	if !definition.Enabled {
		return
	}
	if len(definition.Name) == 0 {
		return
	}

	AddToggleFlag(flagSet, nil, definition.Name, definition.Shorthand, defaultValue, definition.Usage)
}
