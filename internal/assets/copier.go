package assets

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// FileCopier copies glob matches into a destination directory, preserving their layout below the glob base.
type FileCopier struct {
	logger *zap.Logger
}

// NewFileCopier constructs a FileCopier.
func NewFileCopier(logger *zap.Logger) FileCopier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return FileCopier{logger: logger}
}

// Copy copies every file matched by sourcePattern and returns the copied destination paths.
func (copier FileCopier) Copy(executionContext context.Context, sourcePattern string, destinationDirectory string) ([]string, error) {
	matchedFiles, expandError := ExpandGlob(sourcePattern)
	if expandError != nil {
		return nil, expandError
	}

	copiedPaths := make([]string, 0, len(matchedFiles))
	for _, matchedFile := range matchedFiles {
		if contextError := executionContext.Err(); contextError != nil {
			return copiedPaths, contextError
		}
		destinationPath := filepath.Join(destinationDirectory, matchedFile.Relative)
		if copyError := copyFile(matchedFile.Path, destinationPath); copyError != nil {
			return copiedPaths, fmt.Errorf("assets.copy %s: %w", matchedFile.Path, copyError)
		}
		copiedPaths = append(copiedPaths, destinationPath)
	}

	copier.logger.Debug(
		"files_copied",
		zap.String("pattern", sourcePattern),
		zap.String("destination", destinationDirectory),
		zap.Int("count", len(copiedPaths)),
	)
	return copiedPaths, nil
}
