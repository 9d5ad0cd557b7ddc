package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/pipeline"
)

func TestEnabledSteps(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mode          buildconfig.Mode
		assetClass    buildconfig.AssetClass
		expectedSteps []pipeline.Step
	}{
		{
			name:          "production_styles",
			mode:          buildconfig.ModeProduction,
			assetClass:    buildconfig.AssetClassStyles,
			expectedSteps: []pipeline.Step{pipeline.StepAutoprefix, pipeline.StepMinify},
		},
		{
			name:          "development_styles",
			mode:          buildconfig.ModeDevelopment,
			assetClass:    buildconfig.AssetClassStyles,
			expectedSteps: []pipeline.Step{pipeline.StepAutoprefix, pipeline.StepSourceMaps},
		},
		{
			name:          "production_scripts",
			mode:          buildconfig.ModeProduction,
			assetClass:    buildconfig.AssetClassScripts,
			expectedSteps: []pipeline.Step{pipeline.StepDropConsole, pipeline.StepMinify},
		},
		{
			name:          "development_scripts",
			mode:          buildconfig.ModeDevelopment,
			assetClass:    buildconfig.AssetClassScripts,
			expectedSteps: []pipeline.Step{pipeline.StepSourceMaps},
		},
		{
			name:          "production_images",
			mode:          buildconfig.ModeProduction,
			assetClass:    buildconfig.AssetClassImages,
			expectedSteps: []pipeline.Step{pipeline.StepLossy, pipeline.StepProgressive},
		},
		{
			name:          "development_images",
			mode:          buildconfig.ModeDevelopment,
			assetClass:    buildconfig.AssetClassImages,
			expectedSteps: []pipeline.Step{},
		},
		{
			name:          "production_templates",
			mode:          buildconfig.ModeProduction,
			assetClass:    buildconfig.AssetClassTemplates,
			expectedSteps: []pipeline.Step{pipeline.StepMinify},
		},
		{
			name:          "production_fonts",
			mode:          buildconfig.ModeProduction,
			assetClass:    buildconfig.AssetClassFonts,
			expectedSteps: []pipeline.Step{},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			stepSet := pipeline.EnabledSteps(testCase.mode, testCase.assetClass)
			require.Equal(subTest, testCase.expectedSteps, stepSet.Steps())
			require.Equal(subTest, len(testCase.expectedSteps), stepSet.Len())
		})
	}
}

func TestScriptStepsDifferBetweenModes(testInstance *testing.T) {
	production := pipeline.EnabledSteps(buildconfig.ModeProduction, buildconfig.AssetClassScripts)
	development := pipeline.EnabledSteps(buildconfig.ModeDevelopment, buildconfig.AssetClassScripts)

	require.True(testInstance, production.Has(pipeline.StepMinify))
	require.False(testInstance, production.Has(pipeline.StepSourceMaps))
	require.True(testInstance, development.Has(pipeline.StepSourceMaps))
	require.False(testInstance, development.Has(pipeline.StepMinify))
}

func TestForConfigurationUsesConfiguredMode(testInstance *testing.T) {
	configuration, configurationError := buildconfig.New(buildconfig.ModeProduction, buildconfig.DefaultLayout())
	require.NoError(testInstance, configurationError)

	require.True(testInstance, pipeline.ForConfiguration(configuration, buildconfig.AssetClassTemplates).Has(pipeline.StepMinify))
}
