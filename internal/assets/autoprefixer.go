package assets

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/pipeline"
)

const (
	postCSSUseArgumentConstant     = "--use"
	autoprefixerPluginConstant     = "autoprefixer"
	postCSSReplaceArgumentConstant = "--replace"
	postCSSMapArgumentConstant     = "--map"
	postCSSNoMapArgumentConstant   = "--no-map"
	browserslistEnvironmentKey     = "BROWSERSLIST"
	defaultBrowserQueryConstant    = "last 2 versions"
)

// Autoprefixer adds vendor prefixes to compiled stylesheets in place.
type Autoprefixer interface {
	Prefix(executionContext context.Context, stylesheetPaths []string, steps pipeline.StepSet) error
}

// PostCSSAutoprefixer runs postcss with the autoprefixer plugin. It is disabled when no executable is configured.
type PostCSSAutoprefixer struct {
	executor     CommandExecutor
	executable   execshell.CommandName
	browserQuery string
	logger       *zap.Logger
}

// NewPostCSSAutoprefixer constructs a PostCSSAutoprefixer. An empty browser query targets the last two versions.
func NewPostCSSAutoprefixer(executor CommandExecutor, executable string, browserQuery string, logger *zap.Logger) PostCSSAutoprefixer {
	if len(strings.TrimSpace(browserQuery)) == 0 {
		browserQuery = defaultBrowserQueryConstant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return PostCSSAutoprefixer{
		executor:     executor,
		executable:   execshell.CommandName(strings.TrimSpace(executable)),
		browserQuery: browserQuery,
		logger:       logger,
	}
}

// Enabled reports whether an executable is configured.
func (prefixer PostCSSAutoprefixer) Enabled() bool {
	return len(prefixer.executable) > 0
}

// Prefix rewrites the stylesheets in place.
func (prefixer PostCSSAutoprefixer) Prefix(executionContext context.Context, stylesheetPaths []string, steps pipeline.StepSet) error {
	if !steps.Has(pipeline.StepAutoprefix) || len(stylesheetPaths) == 0 {
		return nil
	}
	if !prefixer.Enabled() {
		prefixer.logger.Debug("autoprefix_disabled", zap.Int("stylesheets", len(stylesheetPaths)))
		return nil
	}

	arguments := append([]string(nil), stylesheetPaths...)
	arguments = append(arguments, postCSSUseArgumentConstant, autoprefixerPluginConstant, postCSSReplaceArgumentConstant)
	if steps.Has(pipeline.StepSourceMaps) {
		arguments = append(arguments, postCSSMapArgumentConstant)
	} else {
		arguments = append(arguments, postCSSNoMapArgumentConstant)
	}

	_, executionError := prefixer.executor.Execute(executionContext, execshell.ShellCommand{
		Name: prefixer.executable,
		Details: execshell.CommandDetails{
			Arguments:            arguments,
			EnvironmentVariables: map[string]string{browserslistEnvironmentKey: prefixer.browserQuery},
		},
	})
	return executionError
}
