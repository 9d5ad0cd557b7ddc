// Package frontend declares the asset build tasks: the task catalog a project would otherwise keep in its build file.
package frontend

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tyemirov/assetflow/internal/assets"
	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/pipeline"
	"github.com/tyemirov/assetflow/internal/taskgraph"
)

// Task names registered by NewRegistry.
const (
	TaskClean         = "clean"
	TaskStylesCompile = "styles:compile"
	TaskStyles        = "styles"
	TaskScriptsConcat = "scripts:concat"
	TaskScripts       = "scripts"
	TaskCopyFonts     = "copy:fonts"
	TaskCopyImages    = "copy:images"
	TaskCopyTemplate  = "copy:template"
	TaskImages        = "images"
	TaskHTML          = "html"
	TaskBuild         = "build"
	TaskDevelopment   = "dev"
)

const (
	defaultScriptOutputConstant = "main.js"
	stylesheetGlobConstant      = "*.css"
	recursiveGlobConstant       = "**"
)

// CatalogOptions tunes the registered tasks.
type CatalogOptions struct {
	// Clean registers the clean task and makes every writing task depend on it.
	Clean bool
	// ScriptOutput is the bundle file name inside the scripts destination. Defaults to main.js.
	ScriptOutput string
	// Layout supplies watch inputs and output scopes. Defaults to buildconfig.DefaultLayout.
	Layout buildconfig.Layout
}

type catalog struct {
	toolchain    assets.Toolchain
	scriptOutput string
}

// NewRegistry registers the asset build tasks and returns the populated registry.
// Actions read their paths and mode from the configuration passed to each run.
func NewRegistry(toolchain assets.Toolchain, options CatalogOptions) (*taskgraph.Registry, error) {
	layout := options.Layout
	if len(layout.Assets) == 0 {
		layout = buildconfig.DefaultLayout()
	}
	scriptOutput := strings.TrimSpace(options.ScriptOutput)
	if len(scriptOutput) == 0 {
		scriptOutput = defaultScriptOutputConstant
	}
	definitions := catalog{toolchain: toolchain, scriptOutput: scriptOutput}

	writerPrerequisites := func(prerequisites ...string) []string {
		if options.Clean {
			return append([]string{TaskClean}, prerequisites...)
		}
		return prerequisites
	}

	styles := layout.Assets[buildconfig.AssetClassStyles]
	scripts := layout.Assets[buildconfig.AssetClassScripts]
	images := layout.Assets[buildconfig.AssetClassImages]
	fonts := layout.Assets[buildconfig.AssetClassFonts]
	templates := layout.Assets[buildconfig.AssetClassTemplates]

	tasks := make([]taskgraph.Task, 0, 12)
	if options.Clean {
		tasks = append(tasks, taskgraph.Task{
			Name:        TaskClean,
			Description: "Remove everything inside the destination root",
			Action:      definitions.clean,
			Outputs:     []string{layout.DestinationRoot},
		})
	}
	tasks = append(tasks,
		taskgraph.Task{
			Name:          TaskStylesCompile,
			Description:   "Compile stylesheets",
			Prerequisites: writerPrerequisites(),
			Action:        definitions.compileStyles,
			Outputs:       []string{styles.Destination},
		},
		taskgraph.Task{
			Name:          TaskStyles,
			Description:   "Autoprefix and minify compiled stylesheets",
			Prerequisites: writerPrerequisites(TaskStylesCompile),
			Action:        definitions.finishStyles,
			Inputs:        []string{styles.Source},
			Outputs:       []string{styles.Destination},
		},
		taskgraph.Task{
			Name:          TaskScriptsConcat,
			Description:   "Concatenate scripts into a single bundle",
			Prerequisites: writerPrerequisites(),
			Action:        definitions.concatenateScripts,
			Outputs:       []string{scripts.Destination},
		},
		taskgraph.Task{
			Name:          TaskScripts,
			Description:   "Compress the script bundle",
			Prerequisites: writerPrerequisites(TaskScriptsConcat),
			Action:        definitions.compressScripts,
			Inputs:        []string{scripts.Source},
			Outputs:       []string{scripts.Destination},
		},
		taskgraph.Task{
			Name:          TaskCopyFonts,
			Description:   "Copy fonts",
			Prerequisites: writerPrerequisites(),
			Action:        definitions.copyAssets(buildconfig.AssetClassFonts),
			Outputs:       []string{OutputScope(fonts)},
		},
		taskgraph.Task{
			Name:          TaskCopyImages,
			Description:   "Copy images",
			Prerequisites: writerPrerequisites(),
			Action:        definitions.copyAssets(buildconfig.AssetClassImages),
			Outputs:       []string{OutputScope(images)},
		},
		taskgraph.Task{
			Name:          TaskCopyTemplate,
			Description:   "Copy HTML templates",
			Prerequisites: writerPrerequisites(),
			Action:        definitions.copyAssets(buildconfig.AssetClassTemplates),
			Outputs:       []string{OutputScope(templates)},
		},
		taskgraph.Task{
			Name:          TaskImages,
			Description:   "Optimize copied images",
			Prerequisites: writerPrerequisites(TaskCopyImages),
			Action:        definitions.optimizeImages,
			Inputs:        []string{images.Source},
			Outputs:       []string{OutputScope(images)},
		},
		taskgraph.Task{
			Name:          TaskHTML,
			Description:   "Minify copied HTML templates",
			Prerequisites: writerPrerequisites(TaskCopyTemplate),
			Action:        definitions.minifyTemplates,
			Inputs:        []string{templates.Source},
			Outputs:       []string{OutputScope(templates)},
		},
		taskgraph.Task{
			Name:          TaskBuild,
			Description:   "Build every asset class",
			Prerequisites: []string{TaskStyles, TaskScripts, TaskCopyFonts, TaskImages, TaskHTML},
			Action:        taskgraph.NoopAction,
		},
		taskgraph.Task{
			Name:          TaskDevelopment,
			Description:   "Copy static assets for development",
			Prerequisites: []string{TaskCopyFonts, TaskCopyImages, TaskCopyTemplate},
			Action:        taskgraph.NoopAction,
		},
	)

	registry := taskgraph.NewRegistry()
	for _, task := range tasks {
		if registerError := registry.Register(task); registerError != nil {
			return nil, registerError
		}
	}
	if validationError := registry.Validate(); validationError != nil {
		return nil, validationError
	}
	return registry, nil
}

// OutputScope maps an asset source glob onto its destination, e.g. app/*.html into build becomes build/*.html.
// Sources without a glob component scope the whole destination directory.
func OutputScope(assetPaths buildconfig.AssetPaths) string {
	_, relativePattern := doublestar.SplitPattern(filepath.ToSlash(assetPaths.Source))
	if len(relativePattern) == 0 || !strings.ContainsAny(relativePattern, "*?[{") {
		return path.Join(filepath.ToSlash(assetPaths.Destination), recursiveGlobConstant)
	}
	return path.Join(filepath.ToSlash(assetPaths.Destination), relativePattern)
}

func (definitions catalog) clean(_ context.Context, configuration buildconfig.Configuration) error {
	return definitions.toolchain.Cleaner.Clean(configuration.DestinationRoot())
}

func (definitions catalog) compileStyles(executionContext context.Context, configuration buildconfig.Configuration) error {
	styles, configured := configuration.Asset(buildconfig.AssetClassStyles)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassStyles)
	}
	_, compileError := definitions.toolchain.Styles.Compile(executionContext, assets.StyleRequest{
		SourcePattern:        styles.Source,
		DestinationDirectory: styles.Destination,
		Steps:                pipeline.ForConfiguration(configuration, buildconfig.AssetClassStyles),
	})
	return compileError
}

func (definitions catalog) finishStyles(executionContext context.Context, configuration buildconfig.Configuration) error {
	styles, configured := configuration.Asset(buildconfig.AssetClassStyles)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassStyles)
	}
	steps := pipeline.ForConfiguration(configuration, buildconfig.AssetClassStyles)

	compiledFiles, expandError := assets.ExpandGlob(filepath.Join(styles.Destination, stylesheetGlobConstant))
	if expandError != nil {
		return expandError
	}
	stylesheetPaths := make([]string, 0, len(compiledFiles))
	for _, compiledFile := range compiledFiles {
		stylesheetPaths = append(stylesheetPaths, compiledFile.Path)
	}

	if prefixError := definitions.toolchain.Autoprefixer.Prefix(executionContext, stylesheetPaths, steps); prefixError != nil {
		return prefixError
	}
	if !steps.Has(pipeline.StepMinify) || definitions.toolchain.Minifier == nil {
		return nil
	}
	for _, stylesheetPath := range stylesheetPaths {
		if minifyError := definitions.toolchain.Minifier.File(stylesheetPath, assets.MediaTypeCSS); minifyError != nil {
			return minifyError
		}
	}
	return nil
}

func (definitions catalog) concatenateScripts(executionContext context.Context, configuration buildconfig.Configuration) error {
	scripts, configured := configuration.Asset(buildconfig.AssetClassScripts)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassScripts)
	}
	return definitions.toolchain.Scripts.Concatenate(
		executionContext,
		scripts.Source,
		filepath.Join(scripts.Destination, definitions.scriptOutput),
		pipeline.ForConfiguration(configuration, buildconfig.AssetClassScripts),
	)
}

func (definitions catalog) compressScripts(executionContext context.Context, configuration buildconfig.Configuration) error {
	scripts, configured := configuration.Asset(buildconfig.AssetClassScripts)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassScripts)
	}
	return definitions.toolchain.Scripts.Compress(
		executionContext,
		filepath.Join(scripts.Destination, definitions.scriptOutput),
		pipeline.ForConfiguration(configuration, buildconfig.AssetClassScripts),
	)
}

func (definitions catalog) copyAssets(assetClass buildconfig.AssetClass) taskgraph.Action {
	return func(executionContext context.Context, configuration buildconfig.Configuration) error {
		assetPaths, configured := configuration.Asset(assetClass)
		if !configured {
			return missingAssetClassError(assetClass)
		}
		_, copyError := definitions.toolchain.Copier.Copy(executionContext, assetPaths.Source, assetPaths.Destination)
		return copyError
	}
}

func (definitions catalog) optimizeImages(executionContext context.Context, configuration buildconfig.Configuration) error {
	images, configured := configuration.Asset(buildconfig.AssetClassImages)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassImages)
	}
	steps := pipeline.ForConfiguration(configuration, buildconfig.AssetClassImages)
	if steps.Len() == 0 {
		return nil
	}

	copiedImages, expandError := assets.ExpandGlob(filepath.FromSlash(OutputScope(images)))
	if expandError != nil {
		return expandError
	}
	for _, copiedImage := range copiedImages {
		if _, optimizeError := definitions.toolchain.Images.Optimize(executionContext, copiedImage.Path, steps); optimizeError != nil {
			return optimizeError
		}
	}
	return nil
}

func (definitions catalog) minifyTemplates(executionContext context.Context, configuration buildconfig.Configuration) error {
	templates, configured := configuration.Asset(buildconfig.AssetClassTemplates)
	if !configured {
		return missingAssetClassError(buildconfig.AssetClassTemplates)
	}
	steps := pipeline.ForConfiguration(configuration, buildconfig.AssetClassTemplates)
	if !steps.Has(pipeline.StepMinify) {
		return nil
	}

	copiedTemplates, expandError := assets.ExpandGlob(filepath.FromSlash(OutputScope(templates)))
	if expandError != nil {
		return expandError
	}
	for _, copiedTemplate := range copiedTemplates {
		if minifyError := definitions.toolchain.HTML.Minify(executionContext, copiedTemplate.Path, steps); minifyError != nil {
			return minifyError
		}
	}
	return nil
}

func missingAssetClassError(assetClass buildconfig.AssetClass) error {
	return fmt.Errorf("%w: asset class %s is not configured", buildconfig.ErrInvalidConfiguration, assetClass)
}
