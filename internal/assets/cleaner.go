package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsafeCleanTarget rejects clean targets that would remove the working directory or filesystem root.
var ErrUnsafeCleanTarget = errors.New("refusing to clean unsafe target")

// Cleaner empties the destination root.
type Cleaner struct {
	logger *zap.Logger
}

// NewCleaner constructs a Cleaner.
func NewCleaner(logger *zap.Logger) Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Cleaner{logger: logger}
}

// Clean removes every entry inside directory and keeps the directory itself. A missing directory is not an error.
func (cleaner Cleaner) Clean(directory string) error {
	trimmedDirectory := strings.TrimSpace(directory)
	cleanedDirectory := filepath.Clean(trimmedDirectory)
	if len(trimmedDirectory) == 0 || cleanedDirectory == "." || cleanedDirectory == string(filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrUnsafeCleanTarget, directory)
	}

	entries, readError := os.ReadDir(cleanedDirectory)
	if errors.Is(readError, os.ErrNotExist) {
		return nil
	}
	if readError != nil {
		return fmt.Errorf("assets.clean %s: %w", cleanedDirectory, readError)
	}

	for _, entry := range entries {
		if removeError := os.RemoveAll(filepath.Join(cleanedDirectory, entry.Name())); removeError != nil {
			return fmt.Errorf("assets.clean %s: %w", cleanedDirectory, removeError)
		}
	}

	cleaner.logger.Debug("destination_cleaned", zap.String("directory", cleanedDirectory), zap.Int("entries", len(entries)))
	return nil
}
