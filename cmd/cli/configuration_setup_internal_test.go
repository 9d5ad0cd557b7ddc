package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationEnvironmentSearchPaths(t *testing.T) {
	homeDirectory := filepath.Join(string(filepath.Separator), "home", "builder")
	testCases := []struct {
		name          string
		variables     map[string]string
		userConfigDir func() (string, error)
		expectedPaths []string
	}{
		{
			name:          "working_then_xdg_then_home",
			variables:     map[string]string{xdgConfigHomeEnvironmentVariableConstant: "/xdg"},
			userConfigDir: func() (string, error) { return homeDirectory + "/.config", nil },
			expectedPaths: []string{".", "/xdg/.assetflow", homeDirectory + "/.config/.assetflow", homeDirectory + "/.assetflow"},
		},
		{
			name:          "duplicate_user_directories_collapse",
			variables:     map[string]string{xdgConfigHomeEnvironmentVariableConstant: homeDirectory + "/.config"},
			userConfigDir: func() (string, error) { return homeDirectory + "/.config", nil },
			expectedPaths: []string{".", homeDirectory + "/.config/.assetflow", homeDirectory + "/.assetflow"},
		},
		{
			name:          "unresolvable_user_config_dir_is_skipped",
			userConfigDir: func() (string, error) { return "", errors.New("no config dir") },
			expectedPaths: []string{".", homeDirectory + "/.assetflow"},
		},
		{
			name: "override_replaces_defaults",
			variables: map[string]string{
				configurationSearchPathEnvironmentVariableConstant: fmt.Sprintf("/etc/assetflow%c /srv/site %c/etc/assetflow", os.PathListSeparator, os.PathListSeparator),
				xdgConfigHomeEnvironmentVariableConstant:           "/xdg",
			},
			expectedPaths: []string{"/etc/assetflow", "/srv/site"},
		},
		{
			name: "blank_override_entries_fall_back_to_working_directory",
			variables: map[string]string{
				configurationSearchPathEnvironmentVariableConstant: string(os.PathListSeparator),
			},
			expectedPaths: []string{"."},
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			environment := configurationEnvironment{
				lookupVariable:    func(name string) string { return testCase.variables[name] },
				userConfigDir:     testCase.userConfigDir,
				userHomeDirectory: func() (string, error) { return homeDirectory, nil },
			}
			require.Equal(t, testCase.expectedPaths, environment.searchPaths())
		})
	}
}

func TestConfigurationInitializerPlan(t *testing.T) {
	initializer := configurationInitializer{
		workingDirectory: func() (string, error) { return "/srv/site", nil },
		homeDirectory:    func() (string, error) { return "/home/builder", nil },
	}

	testCases := []struct {
		name          string
		scope         string
		expectedPlan  configurationInitializationPlan
		expectedError string
	}{
		{
			name:         "blank_scope_is_local",
			scope:        " ",
			expectedPlan: configurationInitializationPlan{DirectoryPath: "/srv/site", FilePath: "/srv/site/assetflow.yaml"},
		},
		{
			name:         "user_scope",
			scope:        "USER",
			expectedPlan: configurationInitializationPlan{DirectoryPath: "/home/builder/.assetflow", FilePath: "/home/builder/.assetflow/assetflow.yaml"},
		},
		{
			name:          "unknown_scope",
			scope:         "global",
			expectedError: `unsupported initialization scope "global"`,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			plan, planError := initializer.plan(testCase.scope)
			if len(testCase.expectedError) > 0 {
				require.EqualError(t, planError, testCase.expectedError)
				return
			}
			require.NoError(t, planError)
			require.Equal(t, testCase.expectedPlan, plan)
		})
	}

	emptyHome := configurationInitializer{homeDirectory: func() (string, error) { return "  ", nil }}
	_, emptyHomeError := emptyHome.plan(configurationInitializationScopeUserConstant)
	require.ErrorContains(t, emptyHomeError, configurationInitializationHomeDirectoryEmptyErrorConstant)
}

func TestConfigurationInitializerWrite(t *testing.T) {
	content := []byte("build:\n  mode: production\n")

	t.Run("0_creates_missing_directory", func(t *testing.T) {
		directoryPath := filepath.Join(t.TempDir(), ".assetflow")
		plan := configurationInitializationPlan{DirectoryPath: directoryPath, FilePath: filepath.Join(directoryPath, configurationFileNameConstant)}

		require.NoError(t, configurationInitializer{content: content}.write(plan))
		written, readError := os.ReadFile(plan.FilePath)
		require.NoError(t, readError)
		require.Equal(t, content, written)
	})

	t.Run("1_existing_file_needs_force", func(t *testing.T) {
		directoryPath := t.TempDir()
		plan := configurationInitializationPlan{DirectoryPath: directoryPath, FilePath: filepath.Join(directoryPath, configurationFileNameConstant)}
		require.NoError(t, os.WriteFile(plan.FilePath, []byte("existing"), 0o600))

		require.ErrorContains(t, configurationInitializer{content: content}.write(plan), "use --force to overwrite")
		require.NoError(t, configurationInitializer{content: content, force: true}.write(plan))
		written, readError := os.ReadFile(plan.FilePath)
		require.NoError(t, readError)
		require.Equal(t, content, written)
	})

	t.Run("2_directory_path_is_a_file", func(t *testing.T) {
		blockingFile := filepath.Join(t.TempDir(), "blocked")
		require.NoError(t, os.WriteFile(blockingFile, nil, 0o600))
		plan := configurationInitializationPlan{DirectoryPath: blockingFile, FilePath: filepath.Join(blockingFile, configurationFileNameConstant)}

		require.EqualError(t, configurationInitializer{content: content}.write(plan), fmt.Sprintf(configurationInitializationDirectoryConflictTemplateConstant, blockingFile))
	})

	t.Run("3_missing_content", func(t *testing.T) {
		require.EqualError(t, configurationInitializer{}.write(configurationInitializationPlan{}), configurationInitializationContentUnavailableErrorConstant)
	})
}
