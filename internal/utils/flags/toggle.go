package flags

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTypeName               = "bool"
	toggleNoOptionDefaultValue   = "true"
	toggleInvalidValueTemplate   = "invalid toggle value %q (use true/false, yes/no, on/off)"
	longFlagPrefix               = "--"
	flagValueAssignmentSeparator = "="
)

var (
	registeredToggleNamesMutex sync.RWMutex
	registeredToggleNames      = map[string]struct{}{}
)

type toggleValue struct {
	target *bool
}

func (value *toggleValue) String() string {
	if value == nil || value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value *toggleValue) Set(raw string) error {
	parsed, parseError := parseToggleValue(raw)
	if parseError != nil {
		return parseError
	}
	*value.target = parsed
	return nil
}

func (value *toggleValue) Type() string {
	return toggleTypeName
}

// AddToggleFlag registers a boolean flag that also accepts yes/no and on/off spellings.
// When target is nil the flag owns its storage.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 || flagSet.Lookup(name) != nil {
		return
	}
	if target == nil {
		target = new(bool)
	}
	*target = defaultValue

	flagSet.VarP(&toggleValue{target: target}, name, shorthand, usage)
	if registeredFlag := flagSet.Lookup(name); registeredFlag != nil {
		registeredFlag.NoOptDefVal = toggleNoOptionDefaultValue
	}

	registeredToggleNamesMutex.Lock()
	registeredToggleNames[name] = struct{}{}
	registeredToggleNamesMutex.Unlock()
}

// NormalizeToggleArguments rewrites "--toggle value" pairs into "--toggle=value" so pflag does not treat
// the value as a positional argument.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	registeredToggleNamesMutex.RLock()
	defer registeredToggleNamesMutex.RUnlock()

	normalizedArguments := make([]string, 0, len(arguments))
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		currentArgument := arguments[argumentIndex]
		if !strings.HasPrefix(currentArgument, longFlagPrefix) || strings.Contains(currentArgument, flagValueAssignmentSeparator) {
			normalizedArguments = append(normalizedArguments, currentArgument)
			continue
		}

		flagName := strings.TrimPrefix(currentArgument, longFlagPrefix)
		if _, isToggle := registeredToggleNames[flagName]; !isToggle || argumentIndex+1 >= len(arguments) {
			normalizedArguments = append(normalizedArguments, currentArgument)
			continue
		}

		nextArgument := arguments[argumentIndex+1]
		if _, parseError := parseToggleValue(nextArgument); parseError != nil {
			normalizedArguments = append(normalizedArguments, currentArgument)
			continue
		}

		normalizedArguments = append(normalizedArguments, currentArgument+flagValueAssignmentSeparator+nextArgument)
		argumentIndex++
	}

	return normalizedArguments
}

func parseToggleValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes", "y", "on":
		return true, nil
	case "false", "f", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf(toggleInvalidValueTemplate, raw)
	}
}
