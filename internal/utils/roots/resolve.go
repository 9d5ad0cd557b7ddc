// Package roots resolves the task roots a command runs.
package roots

import (
	"errors"
	"strings"
)

const (
	missingRootsErrorMessage = "at least one task name is required"
	rootSeparator            = ","
)

// MissingRootsError returns the canonical error when no roots are supplied.
func MissingRootsError() error {
	return errors.New(missingRootsErrorMessage)
}

// Resolve prefers positional task names and falls back to the configured roots.
func Resolve(positional []string, configured []string) ([]string, error) {
	if positionalRoots := Sanitize(positional); len(positionalRoots) > 0 {
		return positionalRoots, nil
	}
	if configuredRoots := Sanitize(configured); len(configuredRoots) > 0 {
		return configuredRoots, nil
	}
	return nil, MissingRootsError()
}

// Sanitize splits comma separated values, trims them, and drops empty and repeated names.
// The first occurrence of a name keeps its position.
func Sanitize(values []string) []string {
	sanitized := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, candidate := range strings.Split(value, rootSeparator) {
			trimmed := strings.TrimSpace(candidate)
			if len(trimmed) == 0 {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			sanitized = append(sanitized, trimmed)
		}
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}

// MissingRootsMessage exposes the canonical missing-roots error text.
func MissingRootsMessage() string {
	return missingRootsErrorMessage
}
