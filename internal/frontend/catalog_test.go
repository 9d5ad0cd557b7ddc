package frontend_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/assets"
	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/frontend"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

type fakeStyleCompiler struct {
	requests []assets.StyleRequest
}

func (compiler *fakeStyleCompiler) Compile(_ context.Context, request assets.StyleRequest) ([]string, error) {
	compiler.requests = append(compiler.requests, request)
	outputPath := filepath.Join(request.DestinationDirectory, "main.css")
	if mkdirError := os.MkdirAll(request.DestinationDirectory, 0o755); mkdirError != nil {
		return nil, mkdirError
	}
	return []string{outputPath}, os.WriteFile(outputPath, []byte("body {\n  color: #ff0000;\n}\n"), 0o644)
}

func projectLayout(projectRoot string) buildconfig.Layout {
	sourceRoot := filepath.Join(projectRoot, "app")
	destinationRoot := filepath.Join(projectRoot, "build")
	return buildconfig.Layout{
		SourceRoot:      sourceRoot,
		DestinationRoot: destinationRoot,
		Assets: map[buildconfig.AssetClass]buildconfig.AssetPaths{
			buildconfig.AssetClassStyles:    {Source: filepath.Join(sourceRoot, "styles", "*.scss"), Destination: filepath.Join(destinationRoot, "styles")},
			buildconfig.AssetClassScripts:   {Source: filepath.Join(sourceRoot, "scripts", "*.js"), Destination: filepath.Join(destinationRoot, "scripts")},
			buildconfig.AssetClassImages:    {Source: filepath.Join(sourceRoot, "images", "**"), Destination: filepath.Join(destinationRoot, "images")},
			buildconfig.AssetClassFonts:     {Source: filepath.Join(sourceRoot, "fonts", "**"), Destination: filepath.Join(destinationRoot, "fonts")},
			buildconfig.AssetClassTemplates: {Source: filepath.Join(sourceRoot, "*.html"), Destination: destinationRoot},
		},
	}
}

func writeProjectFile(testInstance *testing.T, filePath string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(testInstance, os.WriteFile(filePath, []byte(content), 0o644))
}

func TestNewRegistryRegistersCatalog(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       frontend.CatalogOptions
		expectedNames []string
		expectedPlan  []string
	}{
		{
			name:    "with_clean",
			options: frontend.CatalogOptions{Clean: true},
			expectedNames: []string{
				"clean", "styles:compile", "styles", "scripts:concat", "scripts",
				"copy:fonts", "copy:images", "copy:template", "images", "html", "build", "dev",
			},
			expectedPlan: []string{
				"clean", "styles:compile", "styles", "scripts:concat", "scripts",
				"copy:fonts", "copy:images", "copy:template", "images", "html", "build",
			},
		},
		{
			name:    "without_clean",
			options: frontend.CatalogOptions{},
			expectedNames: []string{
				"styles:compile", "styles", "scripts:concat", "scripts",
				"copy:fonts", "copy:images", "copy:template", "images", "html", "build", "dev",
			},
			expectedPlan: []string{
				"styles:compile", "styles", "scripts:concat", "scripts",
				"copy:fonts", "copy:images", "copy:template", "images", "html", "build",
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			registry, registryError := frontend.NewRegistry(assets.NewToolchain(nil, assets.ToolchainSettings{}, nil), testCase.options)
			require.NoError(subTest, registryError)
			require.Equal(subTest, testCase.expectedNames, registry.Names())

			plan, planError := registry.Plan([]string{frontend.TaskBuild})
			require.NoError(subTest, planError)
			planNames := make([]string, 0, len(plan))
			for _, task := range plan {
				planNames = append(planNames, task.Name)
			}
			require.Equal(subTest, testCase.expectedPlan, planNames)

			stylesTask, found := registry.Task(frontend.TaskStyles)
			require.True(subTest, found)
			if testCase.options.Clean {
				require.Equal(subTest, []string{"clean", "styles:compile"}, stylesTask.Prerequisites)
			} else {
				require.Equal(subTest, []string{"styles:compile"}, stylesTask.Prerequisites)
			}
		})
	}
}

func TestNewRegistryDeclaresWatchInputs(testInstance *testing.T) {
	registry, registryError := frontend.NewRegistry(assets.NewToolchain(nil, assets.ToolchainSettings{}, nil), frontend.CatalogOptions{})
	require.NoError(testInstance, registryError)

	expectedInputs := map[string][]string{
		frontend.TaskStyles:  {"app/styles/*.scss"},
		frontend.TaskScripts: {"app/scripts/*.js"},
		frontend.TaskImages:  {"app/images/**"},
		frontend.TaskHTML:    {"app/*.html"},
	}
	for _, task := range registry.Tasks() {
		require.Equal(testInstance, expectedInputs[task.Name], task.Inputs, task.Name)
	}
}

func TestOutputScope(testInstance *testing.T) {
	testCases := []struct {
		name     string
		paths    buildconfig.AssetPaths
		expected string
	}{
		{name: "templates", paths: buildconfig.AssetPaths{Source: "app/*.html", Destination: "build"}, expected: "build/*.html"},
		{name: "recursive", paths: buildconfig.AssetPaths{Source: "app/images/**", Destination: "build/images"}, expected: "build/images/**"},
		{name: "literal_file", paths: buildconfig.AssetPaths{Source: "app/robots.txt", Destination: "build"}, expected: "build/**"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, frontend.OutputScope(testCase.paths))
		})
	}
}

func TestBuildProducesAssets(testInstance *testing.T) {
	testCases := []struct {
		name            string
		mode            buildconfig.Mode
		expectSourceMap bool
	}{
		{name: "development", mode: buildconfig.ModeDevelopment, expectSourceMap: true},
		{name: "production", mode: buildconfig.ModeProduction, expectSourceMap: false},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			projectRoot := subTest.TempDir()
			layout := projectLayout(projectRoot)
			writeProjectFile(subTest, filepath.Join(projectRoot, "app/styles/main.scss"), "body { color: red; }")
			writeProjectFile(subTest, filepath.Join(projectRoot, "app/scripts/app.js"), "var greeting = 'hello';\nconsole.log(greeting);\n")
			writeProjectFile(subTest, filepath.Join(projectRoot, "app/images/icons/menu.svg"), "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <!-- menu -->\n  <rect width=\"4\" height=\"4\"/>\n</svg>\n")
			writeProjectFile(subTest, filepath.Join(projectRoot, "app/fonts/body.woff"), "woff")
			writeProjectFile(subTest, filepath.Join(projectRoot, "app/index.html"), "<html>\n  <body>\n    <p>Hello</p>\n  </body>\n</html>\n")
			writeProjectFile(subTest, filepath.Join(projectRoot, "build/stale.txt"), "stale")

			styleCompiler := &fakeStyleCompiler{}
			toolchain := assets.NewToolchain(nil, assets.ToolchainSettings{}, zap.NewNop())
			toolchain.Styles = styleCompiler

			registry, registryError := frontend.NewRegistry(toolchain, frontend.CatalogOptions{Clean: true, Layout: layout})
			require.NoError(subTest, registryError)

			configuration, configurationError := buildconfig.New(testCase.mode, layout)
			require.NoError(subTest, configurationError)

			result, runError := taskgraph.NewRunner(registry, taskgraph.WithWorkers(2)).Run(context.Background(), []string{frontend.TaskBuild}, configuration)
			require.NoError(subTest, runError)
			require.Equal(subTest, taskgraph.RunStatusSucceeded, result.Status, result.Failed())

			require.NoFileExists(subTest, filepath.Join(projectRoot, "build/stale.txt"))
			require.FileExists(subTest, filepath.Join(projectRoot, "build/styles/main.css"))
			require.FileExists(subTest, filepath.Join(projectRoot, "build/scripts/main.js"))
			require.FileExists(subTest, filepath.Join(projectRoot, "build/images/icons/menu.svg"))
			require.FileExists(subTest, filepath.Join(projectRoot, "build/fonts/body.woff"))
			require.FileExists(subTest, filepath.Join(projectRoot, "build/index.html"))
			require.Len(subTest, styleCompiler.requests, 1)

			bundle, readError := os.ReadFile(filepath.Join(projectRoot, "build/scripts/main.js"))
			require.NoError(subTest, readError)
			if testCase.expectSourceMap {
				require.FileExists(subTest, filepath.Join(projectRoot, "build/scripts/main.js.map"))
				require.Contains(subTest, string(bundle), "console.log(greeting)")
				return
			}
			require.NoFileExists(subTest, filepath.Join(projectRoot, "build/scripts/main.js.map"))
			require.NotContains(subTest, string(bundle), "console")

			stylesheet, stylesheetError := os.ReadFile(filepath.Join(projectRoot, "build/styles/main.css"))
			require.NoError(subTest, stylesheetError)
			require.NotContains(subTest, string(stylesheet), "\n  color")
		})
	}
}

func TestBuildFailureSkipsDependents(testInstance *testing.T) {
	projectRoot := testInstance.TempDir()
	layout := projectLayout(projectRoot)
	writeProjectFile(testInstance, filepath.Join(projectRoot, "app/index.html"), "<p>Hi</p>")

	toolchain := assets.NewToolchain(nil, assets.ToolchainSettings{}, nil)
	toolchain.Styles = failingStyleCompiler{}

	registry, registryError := frontend.NewRegistry(toolchain, frontend.CatalogOptions{Layout: layout})
	require.NoError(testInstance, registryError)
	configuration, configurationError := buildconfig.New(buildconfig.ModeDevelopment, layout)
	require.NoError(testInstance, configurationError)

	result, runError := taskgraph.NewRunner(registry).Run(context.Background(), []string{frontend.TaskBuild}, configuration)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, taskgraph.RunStatusFailed, result.Status)

	stylesOutcome, found := result.Outcome(frontend.TaskStyles)
	require.True(testInstance, found)
	require.Equal(testInstance, taskgraph.TaskStatusSkipped, stylesOutcome.Status)
	htmlOutcome, found := result.Outcome(frontend.TaskHTML)
	require.True(testInstance, found)
	require.Equal(testInstance, taskgraph.TaskStatusSucceeded, htmlOutcome.Status)
	require.FileExists(testInstance, filepath.Join(projectRoot, "build/index.html"))
}

type failingStyleCompiler struct{}

func (failingStyleCompiler) Compile(context.Context, assets.StyleRequest) ([]string, error) {
	return nil, assets.StyleCompilationError{File: "main.scss", Line: 1, Column: 2, Message: "expected \"}\""}
}
