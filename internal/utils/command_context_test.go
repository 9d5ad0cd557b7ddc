package utils

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandContextAccessorRoundTrips(t *testing.T) {
	accessor := NewCommandContextAccessor()
	flags := ExecutionFlags{Production: true, ProductionSet: true, Workers: 3, WorkersSet: true}

	enriched := accessor.WithExecutionFlags(nil, flags)
	enriched = accessor.WithConfigurationFilePath(enriched, "/srv/site/assetflow.yaml")
	enriched = accessor.WithLogLevel(enriched, " debug ")

	retrievedFlags, flagsAvailable := accessor.ExecutionFlags(enriched)
	require.True(t, flagsAvailable)
	require.Equal(t, flags, retrievedFlags)

	configurationFilePath, pathAvailable := accessor.ConfigurationFilePath(enriched)
	require.True(t, pathAvailable)
	require.Equal(t, "/srv/site/assetflow.yaml", configurationFilePath)

	logLevel, logLevelAvailable := accessor.LogLevel(enriched)
	require.True(t, logLevelAvailable)
	require.Equal(t, "debug", logLevel)
}

func TestCommandContextAccessorMissingValues(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, flagsAvailable := accessor.ExecutionFlags(context.Background())
	require.False(t, flagsAvailable)

	_, pathAvailable := accessor.ConfigurationFilePath(nil)
	require.False(t, pathAvailable)

	_, logLevelAvailable := accessor.LogLevel(accessor.WithLogLevel(context.Background(), "   "))
	require.False(t, logLevelAvailable)
}

func TestExecutionFlagsFallBackToConfiguration(t *testing.T) {
	testCases := []struct {
		name             string
		flags            ExecutionFlags
		expectedWorkers  int
		expectedFailFast bool
		expectedOverride bool
	}{
		{
			name:            "configuration_when_unset",
			flags:           ExecutionFlags{Workers: 9, FailFast: true},
			expectedWorkers: 2,
		},
		{
			name:             "flags_when_set",
			flags:            ExecutionFlags{Workers: 9, WorkersSet: true, FailFast: true, FailFastSet: true},
			expectedWorkers:  9,
			expectedFailFast: true,
			expectedOverride: true,
		},
		{
			name:             "production_alone_counts_as_override",
			flags:            ExecutionFlags{ProductionSet: true},
			expectedWorkers:  2,
			expectedOverride: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subtest *testing.T) {
			require.Equal(subtest, testCase.expectedWorkers, testCase.flags.WorkersOr(2))
			require.Equal(subtest, testCase.expectedFailFast, testCase.flags.FailFastOr(false))
			require.Equal(subtest, testCase.expectedOverride, testCase.flags.HasOverrides())
		})
	}
}
