// Package assets implements the collaborators that turn application sources into build output:
// style compilation, autoprefixing, script bundling, image optimization, HTML minification,
// file copying and cleaning.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	directoryPermissionsConstant = 0o755
	filePermissionsConstant      = 0o644
)

// MatchedFile is a file selected by a glob together with its path relative to the glob's static base.
type MatchedFile struct {
	Path     string
	Relative string
}

// ExpandGlob returns the files matched by pattern in lexical order.
func ExpandGlob(pattern string) ([]MatchedFile, error) {
	slashPattern := filepath.ToSlash(filepath.Clean(pattern))
	base, _ := doublestar.SplitPattern(slashPattern)

	matches, globError := doublestar.FilepathGlob(filepath.FromSlash(slashPattern), doublestar.WithFilesOnly())
	if globError != nil {
		return nil, fmt.Errorf("assets.glob %s: %w", pattern, globError)
	}
	sort.Strings(matches)

	matchedFiles := make([]MatchedFile, 0, len(matches))
	for _, match := range matches {
		relativePath, relativeError := filepath.Rel(filepath.FromSlash(base), match)
		if relativeError != nil {
			return nil, fmt.Errorf("assets.glob %s: %w", pattern, relativeError)
		}
		matchedFiles = append(matchedFiles, MatchedFile{Path: match, Relative: relativePath})
	}
	return matchedFiles, nil
}

func copyFile(sourcePath string, destinationPath string) error {
	sourceFile, openError := os.Open(sourcePath)
	if openError != nil {
		return openError
	}
	defer sourceFile.Close()

	if mkdirError := os.MkdirAll(filepath.Dir(destinationPath), directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	destinationFile, createError := os.OpenFile(destinationPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissionsConstant)
	if createError != nil {
		return createError
	}
	if _, copyError := io.Copy(destinationFile, sourceFile); copyError != nil {
		_ = destinationFile.Close()
		return copyError
	}
	return destinationFile.Close()
}

func writeFile(destinationPath string, content []byte) error {
	if mkdirError := os.MkdirAll(filepath.Dir(destinationPath), directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}
	return os.WriteFile(destinationPath, content, filePermissionsConstant)
}
