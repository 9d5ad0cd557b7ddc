package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/cmd/cli/tasks"
	"github.com/tyemirov/assetflow/internal/frontend"
)

const (
	buildCommandUseNameConstant            = "build"
	buildCommandShortDescriptionConstant   = "Build every asset into the destination root"
	buildCommandLongDescriptionConstant    = "build compiles styles, bundles scripts, copies fonts, images and templates, and reports a per-task summary. The destination root is cleaned first unless build.clean is false."
	devCommandUseNameConstant              = "dev"
	devCommandShortDescriptionConstant     = "Copy fonts, images and templates without cleaning"
	cleanCommandUseNameConstant            = "clean"
	cleanCommandShortDescriptionConstant   = "Remove the destination root"
	defaultCommandUseNameConstant          = "default"
	defaultCommandShortDescriptionConstant = "Clean, build, then serve and watch the project"
	defaultCommandLongDescriptionConstant  = "default runs a full build, starts the development server with live reload, and re-runs tasks as sources change. It is also what assetflow runs without a subcommand."
)

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	environment := tasks.Environment{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.tasksConfiguration,
	}

	runBuilders := []tasks.RunCommandBuilder{
		{
			Environment: environment,
			Use:         buildCommandUseNameConstant,
			Short:       buildCommandShortDescriptionConstant,
			Long:        buildCommandLongDescriptionConstant,
			Roots:       []string{frontend.TaskBuild},
			CleanPolicy: tasks.CleanConfigured,
		},
		{
			Environment: environment,
			Use:         devCommandUseNameConstant,
			Short:       devCommandShortDescriptionConstant,
			Roots:       []string{frontend.TaskDevelopment},
			CleanPolicy: tasks.CleanNever,
		},
		{
			Environment: environment,
			Use:         cleanCommandUseNameConstant,
			Short:       cleanCommandShortDescriptionConstant,
			Roots:       []string{frontend.TaskClean},
			CleanPolicy: tasks.CleanAlways,
		},
		{
			Environment: environment,
			CleanPolicy: tasks.CleanConfigured,
		},
	}
	for builderIndex := range runBuilders {
		runCommand, buildError := runBuilders[builderIndex].Build()
		if buildError == nil {
			cobraCommand.AddCommand(runCommand)
		}
	}

	watchBuilder := tasks.WatchCommandBuilder{Environment: environment}
	if watchCommand, buildError := watchBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(watchCommand)
	}

	serveBuilder := tasks.ServeCommandBuilder{Environment: environment}
	if serveCommand, buildError := serveBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(serveCommand)
	}

	defaultBuilder := tasks.ServeCommandBuilder{
		Environment:  environment,
		Use:          defaultCommandUseNameConstant,
		Short:        defaultCommandShortDescriptionConstant,
		Long:         defaultCommandLongDescriptionConstant,
		InitialRoots: []string{frontend.TaskBuild},
		CleanPolicy:  tasks.CleanConfigured,
	}
	if defaultCommand, buildError := defaultBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(defaultCommand)
		application.defaultRun = defaultCommand.RunE
	}

	listBuilder := tasks.ListCommandBuilder{Environment: environment}
	if listCommand, buildError := listBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(listCommand)
	}
}
