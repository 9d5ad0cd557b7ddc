// Package buildconfig holds the immutable build configuration handed to every task action.
package buildconfig

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the post-processing profile of a build run.
type Mode string

// Supported build modes.
const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

const unknownModeTemplateConstant = "unknown build mode %q"

// ErrUnknownMode reports a mode outside development and production.
var ErrUnknownMode = errors.New("buildconfig: unknown mode")

// ParseMode converts user input into a Mode. Matching ignores case and surrounding whitespace.
func ParseMode(rawMode string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(rawMode))) {
	case ModeDevelopment:
		return ModeDevelopment, nil
	case ModeProduction:
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMode, fmt.Sprintf(unknownModeTemplateConstant, rawMode))
	}
}

// ModeFromProductionFlag maps the --production toggle onto a Mode.
func ModeFromProductionFlag(production bool) Mode {
	if production {
		return ModeProduction
	}
	return ModeDevelopment
}

// IsProduction reports whether the mode enables production post-processing.
func (mode Mode) IsProduction() bool {
	return mode == ModeProduction
}

// String returns the textual mode name.
func (mode Mode) String() string {
	return string(mode)
}
