package assets

import (
	"go.uber.org/zap"
)

// ToolchainSettings configures the external executables used by the toolchain.
// An empty JPEGTranExecutable turns off progressive JPEG output.
type ToolchainSettings struct {
	SassExecutable     string
	SassLoadPaths      []string
	PostCSSExecutable  string
	BrowserQuery       string
	JPEGTranExecutable string
}

// Toolchain bundles the collaborators used by the build tasks.
type Toolchain struct {
	Styles       StyleCompiler
	Autoprefixer Autoprefixer
	Scripts      ScriptBundler
	Images       ImageOptimizer
	HTML         HTMLMinifier
	Minifier     *Minifier
	Copier       FileCopier
	Cleaner      Cleaner
}

// NewToolchain wires the standard collaborators around a shared command executor and minifier.
func NewToolchain(executor CommandExecutor, settings ToolchainSettings, logger *zap.Logger) Toolchain {
	if logger == nil {
		logger = zap.NewNop()
	}
	minifier := NewMinifier()
	return Toolchain{
		Styles:       NewSassCompiler(executor, settings.SassExecutable, settings.SassLoadPaths, logger),
		Autoprefixer: NewPostCSSAutoprefixer(executor, settings.PostCSSExecutable, settings.BrowserQuery, logger),
		Scripts:      NewConcatBundler(minifier, logger),
		Images:       NewStandardImageOptimizer(minifier, logger).WithProgressiveEncoder(executor, settings.JPEGTranExecutable),
		HTML:         NewTemplateMinifier(minifier),
		Minifier:     minifier,
		Copier:       NewFileCopier(logger),
		Cleaner:      NewCleaner(logger),
	}
}
