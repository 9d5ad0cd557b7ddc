package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/version"
)

func (application *Application) newVersionCommand() *cobra.Command {
	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			includeTools, flagError := command.Flags().GetBool(versionToolsFlagNameConstant)
			if flagError != nil {
				return flagError
			}
			if includeTools {
				application.printToolVersions(command)
			}
			return nil
		},
	}
	versionCommand.Flags().Bool(versionToolsFlagNameConstant, false, versionToolsFlagUsageConstant)
	return versionCommand
}

func (application *Application) toolExecutor() version.CommandExecutor {
	shellExecutor, executorError := execshell.NewShellExecutor(application.logger, execshell.OSCommandRunner{}, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return nil
	}
	return shellExecutor
}

func (application *Application) resolveVersion(executionContext context.Context) string {
	dependencies := version.Dependencies{}
	if executor := application.toolExecutor(); executor != nil {
		dependencies.GitExecutor = executor
	}
	return strings.TrimSpace(version.Detect(executionContext, dependencies))
}

func (application *Application) resolveToolVersions(executionContext context.Context, tools []execshell.CommandName) []version.ToolVersion {
	return version.ToolVersions(executionContext, application.toolExecutor(), tools)
}

// configuredTools names the sass executable and, when configured, the postcss executable.
func (application *Application) configuredTools() []execshell.CommandName {
	toolchain := application.configuration.Toolchain
	sassExecutable := execshell.CommandSass
	if trimmed := strings.TrimSpace(toolchain.Sass); len(trimmed) > 0 {
		sassExecutable = execshell.CommandName(trimmed)
	}
	tools := []execshell.CommandName{sassExecutable}
	if trimmed := strings.TrimSpace(toolchain.PostCSS); len(trimmed) > 0 {
		tools = append(tools, execshell.CommandName(trimmed))
	}
	return tools
}

func commandContext(command *cobra.Command) context.Context {
	if command != nil && command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver(commandContext(command)))
}

func (application *Application) printToolVersions(command *cobra.Command) {
	for _, toolVersion := range application.toolVersionResolver(commandContext(command), application.configuredTools()) {
		fmt.Fprintf(command.OutOrStdout(), toolVersionOutputTemplateConstant, toolVersion.Name, toolVersion.Version)
	}
}
