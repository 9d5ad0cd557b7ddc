package buildconfig

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration reports a layout or mode that cannot drive a build.
	ErrInvalidConfiguration = errors.New("buildconfig: invalid configuration")
)

const (
	missingRootTemplateConstant          = "%s root is empty"
	missingAssetClassTemplateConstant    = "asset class %s is not configured"
	incompleteAssetPathsTemplateConstant = "asset class %s requires both source and destination"
)

// Configuration is the read-only snapshot of mode and layout shared by all actions of a run.
// It is built once with New and never mutated afterwards.
type Configuration struct {
	mode   Mode
	layout Layout
}

// New validates the inputs and returns an immutable Configuration.
func New(mode Mode, layout Layout) (Configuration, error) {
	if _, modeError := ParseMode(string(mode)); modeError != nil {
		return Configuration{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, modeError)
	}

	validationProblems := make([]string, 0)
	if len(strings.TrimSpace(layout.SourceRoot)) == 0 {
		validationProblems = append(validationProblems, fmt.Sprintf(missingRootTemplateConstant, "source"))
	}
	if len(strings.TrimSpace(layout.DestinationRoot)) == 0 {
		validationProblems = append(validationProblems, fmt.Sprintf(missingRootTemplateConstant, "destination"))
	}
	for _, assetClass := range AssetClasses() {
		assetPaths, configured := layout.Assets[assetClass]
		if !configured {
			validationProblems = append(validationProblems, fmt.Sprintf(missingAssetClassTemplateConstant, assetClass))
			continue
		}
		if len(strings.TrimSpace(assetPaths.Source)) == 0 || len(strings.TrimSpace(assetPaths.Destination)) == 0 {
			validationProblems = append(validationProblems, fmt.Sprintf(incompleteAssetPathsTemplateConstant, assetClass))
		}
	}
	if len(validationProblems) > 0 {
		return Configuration{}, fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(validationProblems, "; "))
	}

	return Configuration{mode: mode, layout: layout.clone()}, nil
}

// Mode returns the build mode.
func (configuration Configuration) Mode() Mode {
	return configuration.mode
}

// IsProduction reports whether production post-processing is enabled.
func (configuration Configuration) IsProduction() bool {
	return configuration.mode.IsProduction()
}

// SourceRoot returns the directory holding the application sources.
func (configuration Configuration) SourceRoot() string {
	return configuration.layout.SourceRoot
}

// DestinationRoot returns the directory receiving build output.
func (configuration Configuration) DestinationRoot() string {
	return configuration.layout.DestinationRoot
}

// Asset returns the paths configured for an asset class.
func (configuration Configuration) Asset(assetClass AssetClass) (AssetPaths, bool) {
	assetPaths, configured := configuration.layout.Assets[assetClass]
	return assetPaths, configured
}

// Layout returns a copy of the configured layout.
func (configuration Configuration) Layout() Layout {
	return configuration.layout.clone()
}

// WithMode returns a new snapshot sharing the layout but using a different mode.
func (configuration Configuration) WithMode(mode Mode) (Configuration, error) {
	return New(mode, configuration.layout)
}

// Describe lists the mode and asset paths in a stable order for diagnostics.
func (configuration Configuration) Describe() []string {
	descriptions := []string{fmt.Sprintf("mode=%s", configuration.mode)}
	for _, assetClass := range configuration.layout.sortedClasses() {
		assetPaths := configuration.layout.Assets[assetClass]
		descriptions = append(descriptions, fmt.Sprintf("%s: %s -> %s", assetClass, assetPaths.Source, assetPaths.Destination))
	}
	return descriptions
}
