package tasks

import (
	"github.com/spf13/cobra"

	"github.com/tyemirov/assetflow/internal/watch"
)

const (
	watchCommandUseName          = "watch"
	watchCommandShortDescription = "Re-run tasks when their source files change"
	watchCommandLongDescription  = "watch subscribes to every task input pattern and re-runs the bound task after each burst of changes until interrupted."
)

// WatchCommandBuilder assembles the watch command.
type WatchCommandBuilder struct {
	Environment
	NotifierFactory watch.NotifierFactory
}

// Build constructs the watch command.
func (builder *WatchCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   watchCommandUseName,
		Short: watchCommandShortDescription,
		Long:  watchCommandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *WatchCommandBuilder) run(command *cobra.Command, _ []string) error {
	runSession, sessionError := builder.prepare(command, sessionOptions{cleanPolicy: CleanNever})
	if sessionError != nil {
		return sessionError
	}

	options := make([]watch.Option, 0, 1)
	if builder.NotifierFactory != nil {
		options = append(options, watch.WithNotifierFactory(builder.NotifierFactory))
	}
	return runSession.watch(command.Context(), options...)
}
