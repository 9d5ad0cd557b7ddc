package flags_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/assetflow/internal/utils"
	"github.com/tyemirov/assetflow/internal/utils/flags"
)

func TestNormalizeToggleArgumentsJoinsToggleValues(testInstance *testing.T) {
	command := &cobra.Command{Use: "build"}
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{}, flags.DefaultExecutionFlagDefinitions())

	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "toggle_with_value",
			arguments: []string{"--production", "yes", "build"},
			expected:  []string{"--production=yes", "build"},
		},
		{
			name:      "toggle_followed_by_task",
			arguments: []string{"--production", "build"},
			expected:  []string{"--production", "build"},
		},
		{
			name:      "non_toggle_flag",
			arguments: []string{"--workers", "2"},
			expected:  []string{"--workers", "2"},
		},
		{
			name:      "assigned_value",
			arguments: []string{"--fail-fast=off"},
			expected:  []string{"--fail-fast=off"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, flags.NormalizeToggleArguments(testCase.arguments))
		})
	}
}

func TestCollectExecutionFlagsReadsBoundValues(testInstance *testing.T) {
	command := &cobra.Command{Use: "build", RunE: func(*cobra.Command, []string) error { return nil }}
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{Workers: 4}, flags.DefaultExecutionFlagDefinitions())

	require.NoError(testInstance, command.ParseFlags([]string{"--production=on", "--workers", "2"}))

	executionFlags := flags.CollectExecutionFlags(command)
	require.True(testInstance, executionFlags.Production)
	require.True(testInstance, executionFlags.ProductionSet)
	require.Equal(testInstance, 2, executionFlags.Workers)
	require.True(testInstance, executionFlags.WorkersSet)
	require.False(testInstance, executionFlags.FailFast)
	require.False(testInstance, executionFlags.FailFastSet)
}

func TestToggleFlagRejectsUnknownSpelling(testInstance *testing.T) {
	command := &cobra.Command{Use: "build"}
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{}, flags.DefaultExecutionFlagDefinitions())

	require.Error(testInstance, command.ParseFlags([]string{"--production=maybe"}))
}

func TestBoolFlagReportsMissingFlag(testInstance *testing.T) {
	command := &cobra.Command{Use: "build"}
	_, _, flagError := flags.BoolFlag(command, "missing")
	require.ErrorIs(testInstance, flagError, flags.ErrFlagNotDefined)
}

func TestResolveExecutionFlagsPrefersRecordedContext(testInstance *testing.T) {
	command := &cobra.Command{Use: "build"}
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{}, flags.DefaultExecutionFlagDefinitions())
	require.NoError(testInstance, command.ParseFlags([]string{"--workers", "2"}))

	parsed, parsedOverrides := flags.ResolveExecutionFlags(command)
	require.True(testInstance, parsedOverrides)
	require.Equal(testInstance, 2, parsed.Workers)

	recorded := utils.ExecutionFlags{FailFast: true, FailFastSet: true}
	command.SetContext(utils.NewCommandContextAccessor().WithExecutionFlags(context.Background(), recorded))

	resolved, available := flags.ResolveExecutionFlags(command)
	require.True(testInstance, available)
	require.Equal(testInstance, recorded, resolved)
}

func TestStringAndIntFlagsReportChanges(testInstance *testing.T) {
	command := &cobra.Command{Use: "serve"}
	command.Flags().String("host", "localhost", "")
	command.Flags().Int("port", 8080, "")
	require.NoError(testInstance, command.ParseFlags([]string{"--port", "9000"}))

	host, hostChanged, hostError := flags.StringFlag(command, "host")
	require.NoError(testInstance, hostError)
	require.Equal(testInstance, "localhost", host)
	require.False(testInstance, hostChanged)

	port, portChanged, portError := flags.IntFlag(command, "port")
	require.NoError(testInstance, portError)
	require.Equal(testInstance, 9000, port)
	require.True(testInstance, portChanged)

	_, _, mismatchError := flags.IntFlag(command, "host")
	require.Error(testInstance, mismatchError)
}

func TestChangedInspectsRootPersistentFlags(testInstance *testing.T) {
	rootCommand := &cobra.Command{Use: "assetflow"}
	rootCommand.PersistentFlags().String("log-level", "", "")
	childCommand := &cobra.Command{Use: "build", RunE: func(*cobra.Command, []string) error { return nil }}
	rootCommand.AddCommand(childCommand)

	require.False(testInstance, flags.Changed(childCommand, "log-level"))
	require.NoError(testInstance, rootCommand.PersistentFlags().Set("log-level", "debug"))
	require.True(testInstance, flags.Changed(childCommand, "log-level"))
	require.False(testInstance, flags.Changed(childCommand, "missing"))
	require.False(testInstance, flags.Changed(nil, "log-level"))
}
