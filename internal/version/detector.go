// Package version reports the assetflow release and the versions of the external asset tools.
package version

import (
	"context"
	"errors"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/execshell"
)

const (
	unknownVersionFallbackConstant            = "unknown"
	unavailableToolVersionConstant            = "unavailable"
	buildInfoDevelVersionValue                = "devel"
	buildSettingRevisionKeyConstant           = "vcs.revision"
	buildSettingModifiedKeyConstant           = "vcs.modified"
	buildSettingModifiedValueConstant         = "true"
	revisionPrefixConstant                    = "rev-"
	revisionDirtySuffixConstant               = "-dirty"
	revisionLengthConstant                    = 12
	toolVersionArgumentConstant               = "--version"
	gitRevParseSubcommandConstant             = "rev-parse"
	gitShowTopLevelFlagConstant               = "--show-toplevel"
	gitDescribeSubcommandConstant             = "describe"
	gitTagsFlagConstant                       = "--tags"
	gitExactMatchFlagConstant                 = "--exact-match"
	gitLongFlagConstant                       = "--long"
	gitDirtyFlagConstant                      = "--dirty"
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
	gitExecutorMissingMessageConstant         = "git executor not configured"
	gitCommandName                            = execshell.CommandName("git")
)

// CommandExecutor runs git and the asset tools for version probes.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	gitExecutor       CommandExecutor
	workingDirectory  string
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	GitExecutor       CommandExecutor
	WorkingDirectory  string
}

// ToolVersion pairs an external tool with the first line of its --version output.
type ToolVersion struct {
	Name    execshell.CommandName
	Version string
}

// NewDetector constructs a Detector with the supplied dependencies or sensible defaults.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}

	executor := dependencies.GitExecutor
	if executor == nil {
		shellExecutor, creationError := defaultExecutor()
		if creationError != nil {
			return nil, creationError
		}
		executor = shellExecutor
	}

	workingDirectory := strings.TrimSpace(dependencies.WorkingDirectory)
	if len(workingDirectory) == 0 {
		if currentDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
			workingDirectory = currentDirectory
		}
	}

	return &Detector{
		buildInfoProvider: provider,
		gitExecutor:       executor,
		workingDirectory:  workingDirectory,
	}, nil
}

// Detect resolves the application version using the supplied dependencies.
func Detect(executionContext context.Context, dependencies Dependencies) string {
	detector, detectorError := NewDetector(dependencies)
	if detectorError != nil {
		return unknownVersionFallbackConstant
	}
	return detector.Version(executionContext)
}

// Version tries, in order: the module version stamped into the binary, an exact git tag,
// a long git describe, and the VCS revision stamped by the Go toolchain. It returns "unknown"
// when every source is empty.
func (detector *Detector) Version(executionContext context.Context) string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo := detector.readBuildInfo()
	sources := []func() string{
		func() string { return moduleVersion(buildInfo) },
		func() string {
			return detector.describeVersion(executionContext, gitTagsFlagConstant, gitExactMatchFlagConstant)
		},
		func() string {
			return detector.describeVersion(executionContext, gitTagsFlagConstant, gitLongFlagConstant, gitDirtyFlagConstant)
		},
		func() string { return stampedRevision(buildInfo) },
	}

	for _, source := range sources {
		if resolved := source(); len(resolved) > 0 {
			return resolved
		}
	}
	return unknownVersionFallbackConstant
}

// ToolVersions probes each tool with --version. Tools that cannot be run report "unavailable".
func ToolVersions(executionContext context.Context, executor CommandExecutor, tools []execshell.CommandName) []ToolVersion {
	versions := make([]ToolVersion, 0, len(tools))
	for _, tool := range tools {
		if len(strings.TrimSpace(string(tool))) == 0 {
			continue
		}
		resolved := unavailableToolVersionConstant
		if executor != nil {
			executionResult, executionError := executor.Execute(executionContext, execshell.ShellCommand{
				Name:    tool,
				Details: execshell.CommandDetails{Arguments: []string{toolVersionArgumentConstant}},
			})
			if firstLine := firstOutputLine(executionResult.StandardOutput); executionError == nil && len(firstLine) > 0 {
				resolved = firstLine
			}
		}
		versions = append(versions, ToolVersion{Name: tool, Version: resolved})
	}
	return versions
}

func (detector *Detector) readBuildInfo() *debug.BuildInfo {
	if detector.buildInfoProvider == nil {
		return nil
	}
	buildInfo, available := detector.buildInfoProvider.Read()
	if !available {
		return nil
	}
	return buildInfo
}

func moduleVersion(buildInfo *debug.BuildInfo) string {
	if buildInfo == nil {
		return ""
	}
	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) || strings.EqualFold(trimmedVersion, "("+buildInfoDevelVersionValue+")") {
		return ""
	}
	return trimmedVersion
}

func stampedRevision(buildInfo *debug.BuildInfo) string {
	if buildInfo == nil {
		return ""
	}
	var revision string
	var modified bool
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case buildSettingRevisionKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case buildSettingModifiedKeyConstant:
			modified = setting.Value == buildSettingModifiedValueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > revisionLengthConstant {
		revision = revision[:revisionLengthConstant]
	}
	if modified {
		revision += revisionDirtySuffixConstant
	}
	return revisionPrefixConstant + revision
}

func (detector *Detector) describeVersion(executionContext context.Context, flags ...string) string {
	repositoryRoot := detector.repositoryRoot(executionContext)
	executionResult, executionError := detector.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        append([]string{gitDescribeSubcommandConstant}, flags...),
		WorkingDirectory: repositoryRoot,
	})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

func (detector *Detector) repositoryRoot(executionContext context.Context) string {
	if len(detector.workingDirectory) == 0 {
		return ""
	}

	executionResult, executionError := detector.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant},
		WorkingDirectory: detector.workingDirectory,
	})
	if executionError != nil {
		return detector.workingDirectory
	}
	if trimmedPath := strings.TrimSpace(executionResult.StandardOutput); len(trimmedPath) > 0 {
		return trimmedPath
	}
	return detector.workingDirectory
}

func (detector *Detector) executeGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if detector.gitExecutor == nil {
		return execshell.ExecutionResult{}, errors.New(gitExecutorMissingMessageConstant)
	}

	details.EnvironmentVariables = map[string]string{
		gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant,
	}
	return detector.gitExecutor.Execute(executionContext, execshell.ShellCommand{Name: gitCommandName, Details: details})
}

func firstOutputLine(output string) string {
	trimmed := strings.TrimSpace(output)
	if newlineIndex := strings.IndexByte(trimmed, '\n'); newlineIndex >= 0 {
		return strings.TrimSpace(trimmed[:newlineIndex])
	}
	return trimmed
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

func defaultExecutor() (CommandExecutor, error) {
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.OSCommandRunner{}, false)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}
