package flags

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/assetflow/internal/utils"
)

const boolFlagParseErrorTemplate = "unable to parse flag %q: %w"

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

// BoolFlag reads a boolean or toggle flag, reporting whether the user changed it.
// Toggle flags accept the spellings understood by parseToggleValue.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	return readFlag(command, name, func(flagSet *pflag.FlagSet, flag *pflag.Flag) (bool, error) {
		if value, getError := flagSet.GetBool(name); getError == nil {
			return value, nil
		} else if flag.Value == nil {
			return false, getError
		}
		parsedValue, parseError := parseToggleValue(flag.Value.String())
		if parseError != nil {
			return false, fmt.Errorf(boolFlagParseErrorTemplate, name, parseError)
		}
		return parsedValue, nil
	})
}

// StringFlag reads a string flag, reporting whether the user changed it.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	return readFlag(command, name, func(flagSet *pflag.FlagSet, _ *pflag.Flag) (string, error) {
		return flagSet.GetString(name)
	})
}

// IntFlag reads an integer flag, reporting whether the user changed it.
func IntFlag(command *cobra.Command, name string) (int, bool, error) {
	return readFlag(command, name, func(flagSet *pflag.FlagSet, _ *pflag.Flag) (int, error) {
		return flagSet.GetInt(name)
	})
}

func readFlag[Value any](command *cobra.Command, name string, read func(*pflag.FlagSet, *pflag.Flag) (Value, error)) (Value, bool, error) {
	var zero Value
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return zero, false, ErrFlagNotDefined
	}
	value, readError := read(flagSet, flag)
	if readError != nil {
		return zero, false, readError
	}
	return value, flag.Changed, nil
}

// Changed reports whether the user set the named flag on the command or any of its ancestors.
func Changed(command *cobra.Command, name string) bool {
	_, flag := locateFlag(command, name)
	return flag != nil && flag.Changed
}

// locateFlag searches local, persistent, inherited and root persistent flags in that order.
func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{command.Flags(), command.PersistentFlags(), command.InheritedFlags()}
	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, candidateSet := range candidateSets {
		if candidateSet == nil {
			continue
		}
		if flag := candidateSet.Lookup(name); flag != nil {
			return candidateSet, flag
		}
	}
	return nil, nil
}

// CollectExecutionFlags reads --production, --workers and --fail-fast from the command.
// Flags that are not bound stay at their zero value and are reported as unset.
func CollectExecutionFlags(command *cobra.Command) utils.ExecutionFlags {
	var executionFlags utils.ExecutionFlags
	if command == nil {
		return executionFlags
	}

	if value, changed, readError := BoolFlag(command, ProductionFlagName); readError == nil {
		executionFlags.Production, executionFlags.ProductionSet = value, changed
	}
	if value, changed, readError := IntFlag(command, WorkersFlagName); readError == nil {
		executionFlags.Workers, executionFlags.WorkersSet = value, changed
	}
	if value, changed, readError := BoolFlag(command, FailFastFlagName); readError == nil {
		executionFlags.FailFast, executionFlags.FailFastSet = value, changed
	}
	return executionFlags
}

// ResolveExecutionFlags prefers the flags recorded on the command context and falls back to parsing the command.
// The boolean reports whether any value came from the user.
func ResolveExecutionFlags(command *cobra.Command) (utils.ExecutionFlags, bool) {
	if command != nil {
		if recorded, available := utils.NewCommandContextAccessor().ExecutionFlags(command.Context()); available {
			return recorded, true
		}
	}

	executionFlags := CollectExecutionFlags(command)
	return executionFlags, executionFlags.HasOverrides()
}
