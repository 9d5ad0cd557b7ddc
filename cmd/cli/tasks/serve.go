package tasks

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/assetflow/internal/browser"
	"github.com/tyemirov/assetflow/internal/livereload"
	"github.com/tyemirov/assetflow/internal/server"
	"github.com/tyemirov/assetflow/internal/taskgraph"
	"github.com/tyemirov/assetflow/internal/watch"
)

const (
	serveCommandUseName          = "serve"
	serveCommandShortDescription = "Serve the build output with live reload and watch for changes"
	serveCommandLongDescription  = "serve starts the development server over the destination root, opens a browser when configured, and re-runs tasks as their sources change until interrupted."

	browserUnavailableLogEvent = "browser_unavailable"
)

// OpenerFactory builds the browser opener for the configured server.
type OpenerFactory func(configuration ServerConfiguration, logger *zap.Logger) browser.Opener

// ServeCommandBuilder assembles a command that serves the build output while watching sources.
type ServeCommandBuilder struct {
	Environment
	Use   string
	Short string
	Long  string
	// InitialRoots run once before the server starts. A failed initial run aborts the command.
	InitialRoots []string
	// CleanPolicy applies to the initial run only; watch-triggered runs never clean.
	CleanPolicy     CleanPolicy
	OpenerFactory   OpenerFactory
	NotifierFactory watch.NotifierFactory
	ServerOptions   []server.Option
}

// Build constructs the serve command.
func (builder *ServeCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   serveCommandUseName,
		Short: serveCommandShortDescription,
		Long:  serveCommandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	if use := strings.TrimSpace(builder.Use); len(use) > 0 {
		command.Use = use
	}
	if short := strings.TrimSpace(builder.Short); len(short) > 0 {
		command.Short = short
	}
	if long := strings.TrimSpace(builder.Long); len(long) > 0 {
		command.Long = long
	}
	return command, nil
}

func (builder *ServeCommandBuilder) run(command *cobra.Command, _ []string) error {
	executionContext := command.Context()

	if len(builder.InitialRoots) > 0 {
		initialSession, sessionError := builder.prepare(command, sessionOptions{cleanPolicy: builder.CleanPolicy})
		if sessionError != nil {
			return sessionError
		}
		result, runError := initialSession.run(executionContext, builder.InitialRoots)
		if runError != nil {
			return runError
		}
		if resultError := ResultError(result); resultError != nil {
			return resultError
		}
	}

	serveSession, sessionError := builder.prepare(command, sessionOptions{cleanPolicy: CleanNever})
	if sessionError != nil {
		return sessionError
	}
	logger := serveSession.dependencies.Logger
	serverConfiguration := serveSession.configuration.Server

	settings, settingsError := serverConfiguration.Settings(serveSession.build.DestinationRoot())
	if settingsError != nil {
		return settingsError
	}

	hub := livereload.NewHub(logger)
	defer hub.Close()

	readyURLs := make(chan string, 1)
	serverOptions := append([]server.Option{
		server.WithLogger(logger),
		server.WithReadyNotifier(func(url string) {
			select {
			case readyURLs <- url:
			default:
			}
		}),
	}, builder.ServerOptions...)
	developmentServer, serverError := server.New(settings, hub, serverOptions...)
	if serverError != nil {
		return serverError
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.Go(func() error {
		return developmentServer.Start(groupContext)
	})
	group.Go(func() error {
		return serveSession.watch(groupContext, builder.watchOptions(serveSession, hub)...)
	})
	if serverConfiguration.Open {
		opener := builder.resolveOpener(serverConfiguration, logger)
		group.Go(func() error {
			openBrowser(groupContext, opener, readyURLs, logger)
			return nil
		})
	}

	return group.Wait()
}

func (builder *ServeCommandBuilder) watchOptions(serveSession session, hub *livereload.Hub) []watch.Option {
	options := []watch.Option{
		watch.WithAfterRun(func(binding watch.Binding, result taskgraph.RunResult, runError error) {
			if runError != nil || !result.Succeeded() {
				return
			}
			hub.Notify(reloadPaths(serveSession.registry, binding.Task)...)
		}),
	}
	if builder.NotifierFactory != nil {
		options = append(options, watch.WithNotifierFactory(builder.NotifierFactory))
	}
	return options
}

func (builder *ServeCommandBuilder) resolveOpener(configuration ServerConfiguration, logger *zap.Logger) browser.Opener {
	if builder.OpenerFactory != nil {
		if opener := builder.OpenerFactory(configuration, logger); opener != nil {
			return opener
		}
	}
	return browser.NewChromeOpener(browser.ChromeSettings{
		ExecPath: configuration.ChromePath,
		Headless: configuration.Headless,
	}, logger)
}

// openBrowser waits for the server to answer before opening it. Browser problems never stop serving.
func openBrowser(executionContext context.Context, opener browser.Opener, readyURLs <-chan string, logger *zap.Logger) {
	var url string
	select {
	case <-executionContext.Done():
		return
	case url = <-readyURLs:
	}

	if readyError := server.AwaitReady(executionContext, url, server.NewReadinessBackOff()); readyError != nil {
		if executionContext.Err() == nil {
			logger.Warn(browserUnavailableLogEvent, zap.String("url", url), zap.Error(readyError))
		}
		return
	}
	if openError := opener.Open(executionContext, url); openError != nil && executionContext.Err() == nil {
		logger.Warn(browserUnavailableLogEvent, zap.String("url", url), zap.Error(openError))
	}
}

// reloadPaths names what changed for live-reload clients: the task outputs, or the task itself.
func reloadPaths(registry *taskgraph.Registry, taskName string) []string {
	task, found := registry.Task(taskName)
	if !found || len(task.Outputs) == 0 {
		return []string{taskName}
	}
	return task.Outputs
}
