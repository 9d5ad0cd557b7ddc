package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/pipeline"
)

const (
	sassStyleCompressedArgumentConstant = "--style=compressed"
	sassStyleExpandedArgumentConstant   = "--style=expanded"
	sassSourceMapArgumentConstant       = "--source-map"
	sassNoSourceMapArgumentConstant     = "--no-source-map"
	sassLoadPathArgumentTemplate        = "--load-path=%s"
	sassPartialPrefixConstant           = "_"
	cssExtensionConstant                = ".css"
)

var sassLocationPattern = regexp.MustCompile(`(?m)^\s*(\S+\.s[ac]ss)\s+(\d+):(\d+)`)

// CommandExecutor runs external commands.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// StyleRequest describes one stylesheet compilation.
type StyleRequest struct {
	SourcePattern        string
	DestinationDirectory string
	Steps                pipeline.StepSet
}

// StyleCompiler turns stylesheet sources into CSS.
type StyleCompiler interface {
	Compile(executionContext context.Context, request StyleRequest) ([]string, error)
}

// StyleCompilationError locates a syntax error reported by the compiler.
type StyleCompilationError struct {
	File    string
	Line    int
	Column  int
	Message string
	Cause   error
}

// Error reports the location and message.
func (compilationError StyleCompilationError) Error() string {
	if len(compilationError.File) == 0 {
		return fmt.Sprintf("style compilation failed: %s", compilationError.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", compilationError.File, compilationError.Line, compilationError.Column, compilationError.Message)
}

// Unwrap exposes the command failure.
func (compilationError StyleCompilationError) Unwrap() error {
	return compilationError.Cause
}

// SassCompiler invokes the sass executable. Partials (names starting with an underscore) are only
// compiled through the stylesheets that import them.
type SassCompiler struct {
	executor   CommandExecutor
	executable execshell.CommandName
	loadPaths  []string
	logger     *zap.Logger
}

// NewSassCompiler constructs a SassCompiler. An empty executable uses "sass" from PATH.
func NewSassCompiler(executor CommandExecutor, executable string, loadPaths []string, logger *zap.Logger) SassCompiler {
	commandName := execshell.CommandSass
	if trimmedExecutable := strings.TrimSpace(executable); len(trimmedExecutable) > 0 {
		commandName = execshell.CommandName(trimmedExecutable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return SassCompiler{
		executor:   executor,
		executable: commandName,
		loadPaths:  append([]string(nil), loadPaths...),
		logger:     logger,
	}
}

// Compile compiles every non-partial source into DestinationDirectory and returns the written CSS paths.
func (compiler SassCompiler) Compile(executionContext context.Context, request StyleRequest) ([]string, error) {
	matchedFiles, expandError := ExpandGlob(request.SourcePattern)
	if expandError != nil {
		return nil, expandError
	}

	arguments := compiler.arguments(request.Steps)
	outputPaths := make([]string, 0, len(matchedFiles))
	for _, matchedFile := range matchedFiles {
		if strings.HasPrefix(filepath.Base(matchedFile.Path), sassPartialPrefixConstant) {
			continue
		}
		outputPath := filepath.Join(request.DestinationDirectory, strings.TrimSuffix(matchedFile.Relative, filepath.Ext(matchedFile.Relative))+cssExtensionConstant)
		arguments = append(arguments, matchedFile.Path+":"+outputPath)
		outputPaths = append(outputPaths, outputPath)
	}
	if len(outputPaths) == 0 {
		compiler.logger.Debug("styles_nothing_to_compile", zap.String("pattern", request.SourcePattern))
		return nil, nil
	}

	_, executionError := compiler.executor.Execute(executionContext, execshell.ShellCommand{
		Name:    compiler.executable,
		Details: execshell.CommandDetails{Arguments: arguments},
	})
	if executionError != nil {
		return nil, translateSassError(executionError)
	}
	return outputPaths, nil
}

func (compiler SassCompiler) arguments(steps pipeline.StepSet) []string {
	arguments := make([]string, 0, 2+len(compiler.loadPaths))
	if steps.Has(pipeline.StepMinify) {
		arguments = append(arguments, sassStyleCompressedArgumentConstant)
	} else {
		arguments = append(arguments, sassStyleExpandedArgumentConstant)
	}
	if steps.Has(pipeline.StepSourceMaps) {
		arguments = append(arguments, sassSourceMapArgumentConstant)
	} else {
		arguments = append(arguments, sassNoSourceMapArgumentConstant)
	}
	for _, loadPath := range compiler.loadPaths {
		arguments = append(arguments, fmt.Sprintf(sassLoadPathArgumentTemplate, loadPath))
	}
	return arguments
}

func translateSassError(executionError error) error {
	var failedError execshell.CommandFailedError
	if !errors.As(executionError, &failedError) {
		return executionError
	}

	output := failedError.Result.StandardError
	if len(strings.TrimSpace(output)) == 0 {
		output = failedError.Result.StandardOutput
	}
	compilationError := StyleCompilationError{Message: firstNonEmptyLine(output), Cause: executionError}
	if location := sassLocationPattern.FindStringSubmatch(output); location != nil {
		compilationError.File = location[1]
		compilationError.Line, _ = strconv.Atoi(location[2])
		compilationError.Column, _ = strconv.Atoi(location[3])
	}
	if len(compilationError.Message) == 0 {
		compilationError.Message = executionError.Error()
	}
	return compilationError
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}
