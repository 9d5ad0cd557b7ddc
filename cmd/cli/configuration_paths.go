package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// configurationEnvironment abstracts the process lookups used to locate assetflow.yaml.
type configurationEnvironment struct {
	lookupVariable    func(string) string
	userConfigDir     func() (string, error)
	userHomeDirectory func() (string, error)
}

func processConfigurationEnvironment() configurationEnvironment {
	return configurationEnvironment{
		lookupVariable:    os.Getenv,
		userConfigDir:     os.UserConfigDir,
		userHomeDirectory: os.UserHomeDir,
	}
}

// searchPaths lists the directories probed for assetflow.yaml, most specific first.
// ASSETFLOW_CONFIG_SEARCH_PATH replaces the whole list when set.
func (environment configurationEnvironment) searchPaths() []string {
	if override := strings.TrimSpace(environment.lookupVariable(configurationSearchPathEnvironmentVariableConstant)); len(override) > 0 {
		overridePaths := uniquePaths(filepath.SplitList(override))
		if len(overridePaths) > 0 {
			return overridePaths
		}
		return []string{defaultConfigurationSearchPathConstant}
	}

	userBases := []string{environment.lookupVariable(xdgConfigHomeEnvironmentVariableConstant)}
	for _, resolveBase := range []func() (string, error){environment.userConfigDir, environment.userHomeDirectory} {
		if resolveBase == nil {
			continue
		}
		if basePath, resolveError := resolveBase(); resolveError == nil {
			userBases = append(userBases, basePath)
		}
	}

	userDirectories := make([]string, 0, len(userBases))
	for _, basePath := range userBases {
		if trimmedBase := strings.TrimSpace(basePath); len(trimmedBase) > 0 {
			userDirectories = append(userDirectories, filepath.Join(trimmedBase, userConfigurationDirectoryNameConstant))
		}
	}
	return append([]string{defaultConfigurationSearchPathConstant}, uniquePaths(userDirectories)...)
}

func uniquePaths(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		trimmedCandidate := strings.TrimSpace(candidate)
		if len(trimmedCandidate) == 0 {
			continue
		}
		if _, duplicate := seen[trimmedCandidate]; duplicate {
			continue
		}
		seen[trimmedCandidate] = struct{}{}
		unique = append(unique, trimmedCandidate)
	}
	return unique
}
