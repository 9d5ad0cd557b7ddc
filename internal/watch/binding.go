// Package watch re-runs tasks when files matching their input patterns change.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tyemirov/assetflow/internal/taskgraph"
)

// Binding associates a file pattern with the task re-run when a matching file changes.
type Binding struct {
	Pattern string
	Task    string
}

// Bindings derives watch bindings from the Inputs declared by registered tasks, in registration order.
func Bindings(registry *taskgraph.Registry) []Binding {
	bindings := make([]Binding, 0)
	for _, task := range registry.Tasks() {
		for _, input := range task.Inputs {
			bindings = append(bindings, Binding{Pattern: input, Task: task.Name})
		}
	}
	return bindings
}

// String renders the binding for logs.
func (binding Binding) String() string {
	return fmt.Sprintf("%s -> %s", binding.Pattern, binding.Task)
}

func (binding Binding) normalizedPattern() string {
	return normalizePath(binding.Pattern)
}

// staticBase returns the directory portion of the pattern that contains no glob characters.
func (binding Binding) staticBase() string {
	base, _ := doublestar.SplitPattern(binding.normalizedPattern())
	return base
}

func (binding Binding) matches(changedPath string) bool {
	matched, matchError := doublestar.Match(binding.normalizedPattern(), normalizePath(changedPath))
	return matchError == nil && matched
}

func (binding Binding) validate() error {
	if len(strings.TrimSpace(binding.Task)) == 0 {
		return fmt.Errorf("watch binding %q has no task", binding.Pattern)
	}
	if !doublestar.ValidatePattern(binding.normalizedPattern()) {
		return fmt.Errorf("watch binding %q has an invalid pattern", binding.Pattern)
	}
	return nil
}

func normalizePath(rawPath string) string {
	return filepath.ToSlash(filepath.Clean(strings.TrimSpace(rawPath)))
}
