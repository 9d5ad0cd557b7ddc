package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	flagutils "github.com/tyemirov/assetflow/internal/utils/flags"
)

// configurationInitializer writes the embedded defaults for `assetflow --init [local|user]`.
type configurationInitializer struct {
	content          []byte
	force            bool
	workingDirectory func() (string, error)
	homeDirectory    func() (string, error)
}

func (initializer configurationInitializer) plan(scope string) (configurationInitializationPlan, error) {
	var (
		resolveBase       func() (string, error)
		baseErrorTemplate string
		emptyBaseMessage  string
		subdirectory      string
	)

	switch normalizedScope := strings.ToLower(strings.TrimSpace(scope)); normalizedScope {
	case "", configurationInitializationScopeLocalConstant:
		resolveBase = initializer.workingDirectory
		baseErrorTemplate = configurationInitializationWorkingDirectoryErrorTemplateConstant
		emptyBaseMessage = configurationInitializationWorkingDirectoryEmptyErrorConstant
	case configurationInitializationScopeUserConstant:
		resolveBase = initializer.homeDirectory
		baseErrorTemplate = configurationInitializationHomeDirectoryErrorTemplateConstant
		emptyBaseMessage = configurationInitializationHomeDirectoryEmptyErrorConstant
		subdirectory = userConfigurationDirectoryNameConstant
	default:
		return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationUnsupportedScopeTemplateConstant, strings.TrimSpace(scope))
	}

	basePath, resolveError := resolveBase()
	if resolveError != nil {
		return configurationInitializationPlan{}, fmt.Errorf(baseErrorTemplate, resolveError)
	}
	basePath = strings.TrimSpace(basePath)
	if len(basePath) == 0 {
		return configurationInitializationPlan{}, fmt.Errorf(baseErrorTemplate, errors.New(emptyBaseMessage))
	}

	directoryPath := filepath.Join(basePath, subdirectory)
	return configurationInitializationPlan{
		DirectoryPath: directoryPath,
		FilePath:      filepath.Join(directoryPath, configurationFileNameConstant),
	}, nil
}

// write creates the target directory and file. Existing files are kept unless force is set.
func (initializer configurationInitializer) write(plan configurationInitializationPlan) error {
	if len(initializer.content) == 0 {
		return errors.New(configurationInitializationContentUnavailableErrorConstant)
	}

	if directoryInfo, statError := os.Stat(plan.DirectoryPath); statError == nil && !directoryInfo.IsDir() {
		return fmt.Errorf(configurationInitializationDirectoryConflictTemplateConstant, plan.DirectoryPath)
	}
	if createError := os.MkdirAll(plan.DirectoryPath, configurationDirectoryPermissionConstant); createError != nil {
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, plan.DirectoryPath, createError)
	}

	if fileInfo, statError := os.Stat(plan.FilePath); statError == nil {
		if fileInfo.IsDir() {
			return fmt.Errorf(configurationInitializationExistingDirectoryTemplateConstant, plan.FilePath)
		}
		if !initializer.force {
			return fmt.Errorf(configurationInitializationExistingFileTemplateConstant, plan.FilePath)
		}
	} else if !errors.Is(statError, os.ErrNotExist) {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, plan.FilePath, statError)
	}

	if writeError := os.WriteFile(plan.FilePath, initializer.content, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, plan.FilePath, writeError)
	}
	return nil
}

// handleConfigurationInitialization reports whether --init was given and, if so, writes the file.
func (application *Application) handleConfigurationInitialization(command *cobra.Command) (bool, error) {
	if !flagutils.Changed(command, configurationInitializationFlagNameConstant) {
		return false, nil
	}

	content, _ := EmbeddedDefaultConfiguration()
	initializer := configurationInitializer{
		content:          content,
		force:            application.configurationInitializationForced,
		workingDirectory: os.Getwd,
		homeDirectory:    os.UserHomeDir,
	}

	plan, planError := initializer.plan(application.configurationInitializationScope)
	if planError != nil {
		return true, planError
	}
	if writeError := initializer.write(plan); writeError != nil {
		return true, writeError
	}

	application.logger.Info(configurationInitializationSuccessMessageConstant, zap.String(configurationFileFieldConstant, plan.FilePath))
	return true, nil
}
