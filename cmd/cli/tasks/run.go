package tasks

import (
	"strings"

	"github.com/spf13/cobra"

	rootutils "github.com/tyemirov/assetflow/internal/utils/roots"
)

const (
	runCommandUseName          = "run <task>..."
	runCommandShortDescription = "Run the named tasks and their prerequisites"
)

// RunCommandBuilder assembles a command that runs task roots once.
type RunCommandBuilder struct {
	Environment
	// Use, Short and Long override the generic run command metadata.
	Use   string
	Short string
	Long  string
	// Roots are run on every invocation. When empty the command takes the roots as arguments.
	Roots       []string
	CleanPolicy CleanPolicy
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   runCommandUseName,
		Short: runCommandShortDescription,
		Args:  cobra.ArbitraryArgs,
		RunE:  builder.run,
	}
	if len(builder.Roots) > 0 {
		command.Args = cobra.NoArgs
	}
	if use := strings.TrimSpace(builder.Use); len(use) > 0 {
		command.Use = use
	}
	if short := strings.TrimSpace(builder.Short); len(short) > 0 {
		command.Short = short
	}
	command.Long = strings.TrimSpace(builder.Long)

	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string) error {
	roots, rootsError := rootutils.Resolve(arguments, builder.Roots)
	if rootsError != nil {
		return rootsError
	}

	runSession, sessionError := builder.prepare(command, sessionOptions{cleanPolicy: builder.CleanPolicy})
	if sessionError != nil {
		return sessionError
	}

	result, runError := runSession.run(command.Context(), roots)
	if runError != nil {
		return runError
	}
	return ResultError(result)
}
