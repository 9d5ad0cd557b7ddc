package tasks_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/assetflow/cmd/cli/tasks"
	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

type sassStubExecutor struct {
	mutex    sync.Mutex
	commands []execshell.ShellCommand
	failure  error
}

func (executor *sassStubExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	executor.commands = append(executor.commands, command)
	executor.mutex.Unlock()

	if executor.failure != nil {
		return execshell.ExecutionResult{}, executor.failure
	}
	for _, argument := range command.Details.Arguments {
		if strings.HasPrefix(argument, "--") {
			continue
		}
		_, outputPath, found := strings.Cut(argument, ":")
		if !found {
			continue
		}
		if mkdirError := os.MkdirAll(filepath.Dir(outputPath), 0o755); mkdirError != nil {
			return execshell.ExecutionResult{}, mkdirError
		}
		if writeError := os.WriteFile(outputPath, []byte("body {\n  color: red;\n}\n"), 0o644); writeError != nil {
			return execshell.ExecutionResult{}, writeError
		}
	}
	return execshell.ExecutionResult{}, nil
}

func projectConfiguration(projectRoot string) tasks.Configuration {
	sourceRoot := filepath.Join(projectRoot, "app")
	destinationRoot := filepath.Join(projectRoot, "build")

	configuration := tasks.DefaultConfiguration()
	configuration.Server.Open = false
	configuration.Build.Layout = tasks.LayoutConfiguration{
		SourceRoot:      sourceRoot,
		DestinationRoot: destinationRoot,
		Assets: map[string]tasks.AssetConfiguration{
			"styles":    {Source: filepath.Join(sourceRoot, "styles", "*.scss"), Destination: filepath.Join(destinationRoot, "styles")},
			"scripts":   {Source: filepath.Join(sourceRoot, "scripts", "*.js"), Destination: filepath.Join(destinationRoot, "scripts")},
			"images":    {Source: filepath.Join(sourceRoot, "images", "**"), Destination: filepath.Join(destinationRoot, "images")},
			"fonts":     {Source: filepath.Join(sourceRoot, "fonts", "**"), Destination: filepath.Join(destinationRoot, "fonts")},
			"templates": {Source: filepath.Join(sourceRoot, "*.html"), Destination: destinationRoot},
		},
	}
	return configuration
}

func writeProjectFile(testInstance *testing.T, filePath string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(testInstance, os.WriteFile(filePath, []byte(content), 0o644))
}

func seedProject(testInstance *testing.T, projectRoot string) {
	testInstance.Helper()
	writeProjectFile(testInstance, filepath.Join(projectRoot, "app", "styles", "main.scss"), "body { color: red; }\n")
	writeProjectFile(testInstance, filepath.Join(projectRoot, "app", "scripts", "app.js"), "var answer = 42;\n")
	writeProjectFile(testInstance, filepath.Join(projectRoot, "app", "fonts", "icons.woff"), "font")
	writeProjectFile(testInstance, filepath.Join(projectRoot, "app", "index.html"), "<html><body><p>Hello</p></body></html>\n")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(projectRoot, "app", "images"), 0o755))
}

func newEnvironment(configuration tasks.Configuration, executor *sassStubExecutor) tasks.Environment {
	return tasks.Environment{
		LoggerProvider:        func() *zap.Logger { return zap.NewNop() },
		ConfigurationProvider: func() tasks.Configuration { return configuration },
		CommandExecutor:       executor,
	}
}

func executeCommand(testInstance *testing.T, command *cobra.Command, arguments ...string) (string, string, error) {
	testInstance.Helper()
	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	command.SetOut(&standardOutput)
	command.SetErr(&standardError)
	command.SetArgs(arguments)
	command.SetContext(context.Background())
	executionError := command.Execute()
	return standardOutput.String(), standardError.String(), executionError
}

func TestRunCommandBuildsProject(testInstance *testing.T) {
	projectRoot := testInstance.TempDir()
	seedProject(testInstance, projectRoot)
	writeProjectFile(testInstance, filepath.Join(projectRoot, "build", "stale.txt"), "old")

	executor := &sassStubExecutor{}
	builder := tasks.RunCommandBuilder{
		Environment: newEnvironment(projectConfiguration(projectRoot), executor),
		Use:         "build",
		Roots:       []string{"build"},
		CleanPolicy: tasks.CleanConfigured,
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, standardError, executionError := executeCommand(testInstance, command)
	require.NoError(testInstance, executionError)

	for _, expectedPath := range []string{
		filepath.Join("build", "styles", "main.css"),
		filepath.Join("build", "scripts", "main.js"),
		filepath.Join("build", "scripts", "main.js.map"),
		filepath.Join("build", "fonts", "icons.woff"),
		filepath.Join("build", "index.html"),
	} {
		require.FileExists(testInstance, filepath.Join(projectRoot, expectedPath))
	}
	require.NoFileExists(testInstance, filepath.Join(projectRoot, "build", "stale.txt"))
	require.Len(testInstance, executor.commands, 1)
	require.Contains(testInstance, standardError, "clean: succeeded")
	require.Contains(testInstance, standardError, "Summary: roots=build status=succeeded")
}

func TestRunCommandUsesConfiguredMode(testInstance *testing.T) {
	projectRoot := testInstance.TempDir()
	seedProject(testInstance, projectRoot)

	configuration := projectConfiguration(projectRoot)
	configuration.Build.Mode = buildconfig.ModeProduction

	executor := &sassStubExecutor{}
	builder := tasks.RunCommandBuilder{Environment: newEnvironment(configuration, executor)}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, _, executionError := executeCommand(testInstance, command, "scripts", "styles")
	require.NoError(testInstance, executionError)

	require.FileExists(testInstance, filepath.Join(projectRoot, "build", "scripts", "main.js"))
	require.NoFileExists(testInstance, filepath.Join(projectRoot, "build", "scripts", "main.js.map"))
	require.Len(testInstance, executor.commands, 1)
	require.Contains(testInstance, executor.commands[0].Details.Arguments, "--style=compressed")
}

func TestRunCommandReportsFailedTasks(testInstance *testing.T) {
	projectRoot := testInstance.TempDir()
	seedProject(testInstance, projectRoot)

	executor := &sassStubExecutor{failure: errors.New("sass exploded")}
	builder := tasks.RunCommandBuilder{
		Environment: newEnvironment(projectConfiguration(projectRoot), executor),
		Roots:       []string{"build"},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, standardError, executionError := executeCommand(testInstance, command)
	require.Error(testInstance, executionError)

	var runFailure tasks.RunFailedError
	require.ErrorAs(testInstance, executionError, &runFailure)
	require.Equal(testInstance, taskgraph.RunStatusFailed, runFailure.Status)
	require.Equal(testInstance, []string{"styles:compile"}, runFailure.FailedTasks)
	require.Contains(testInstance, standardError, "styles:compile: failed")
	require.FileExists(testInstance, filepath.Join(projectRoot, "build", "index.html"))
}

func TestRunCommandRequiresRoots(testInstance *testing.T) {
	builder := tasks.RunCommandBuilder{Environment: newEnvironment(projectConfiguration(testInstance.TempDir()), &sassStubExecutor{})}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, _, executionError := executeCommand(testInstance, command)
	require.ErrorContains(testInstance, executionError, "at least one task name is required")
}

func TestRunCommandRejectsUnknownTask(testInstance *testing.T) {
	builder := tasks.RunCommandBuilder{Environment: newEnvironment(projectConfiguration(testInstance.TempDir()), &sassStubExecutor{})}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, _, executionError := executeCommand(testInstance, command, "deploy")
	require.ErrorIs(testInstance, executionError, taskgraph.ErrConfiguration)
}

func TestListCommandPrintsTasks(testInstance *testing.T) {
	type listedTask struct {
		Name          string   `yaml:"name"`
		Prerequisites []string `yaml:"prerequisites"`
		Inputs        []string `yaml:"inputs"`
	}

	testCases := []struct {
		name          string
		arguments     []string
		expectedNames []string
	}{
		{
			name:          "every_task",
			arguments:     nil,
			expectedNames: []string{"clean", "styles:compile", "styles", "scripts:concat", "scripts", "copy:fonts", "copy:images", "copy:template", "images", "html", "build", "dev"},
		},
		{
			name:          "planned_roots",
			arguments:     []string{"html"},
			expectedNames: []string{"clean", "copy:template", "html"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			builder := tasks.ListCommandBuilder{Environment: newEnvironment(projectConfiguration(subTest.TempDir()), &sassStubExecutor{})}
			command, buildError := builder.Build()
			require.NoError(subTest, buildError)

			standardOutput, _, executionError := executeCommand(subTest, command, testCase.arguments...)
			require.NoError(subTest, executionError)

			var listed []listedTask
			require.NoError(subTest, yaml.Unmarshal([]byte(standardOutput), &listed))

			names := make([]string, 0, len(listed))
			for _, task := range listed {
				names = append(names, task.Name)
				if task.Name == "html" {
					require.Equal(subTest, []string{"clean", "copy:template"}, task.Prerequisites)
					require.Len(subTest, task.Inputs, 1)
				}
			}
			require.Equal(subTest, testCase.expectedNames, names)
		})
	}
}

func TestWatchCommandReturnsWhenCancelled(testInstance *testing.T) {
	projectRoot := testInstance.TempDir()
	seedProject(testInstance, projectRoot)

	builder := tasks.WatchCommandBuilder{Environment: newEnvironment(projectConfiguration(projectRoot), &sassStubExecutor{})}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	command.SetArgs(nil)
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	require.NoError(testInstance, command.ExecuteContext(cancelledContext))
}

func TestResultError(testInstance *testing.T) {
	require.NoError(testInstance, tasks.ResultError(taskgraph.RunResult{Status: taskgraph.RunStatusSucceeded}))

	resultError := tasks.ResultError(taskgraph.RunResult{
		Roots:  []string{"build"},
		Status: taskgraph.RunStatusFailed,
		Outcomes: []taskgraph.TaskOutcome{
			{Name: "styles", Status: taskgraph.TaskStatusFailed},
			{Name: "html", Status: taskgraph.TaskStatusSucceeded},
		},
	})
	require.EqualError(testInstance, resultError, "run of build failed (failed: styles)")

	cancelledError := tasks.ResultError(taskgraph.RunResult{Roots: []string{"dev"}, Status: taskgraph.RunStatusCancelled})
	require.EqualError(testInstance, cancelledError, "run of dev cancelled")
}
