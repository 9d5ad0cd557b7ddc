// Package pipeline decides which post-processing steps apply to an asset class in a given build mode.
package pipeline

import (
	"sort"

	"github.com/tyemirov/assetflow/internal/buildconfig"
)

// Step names a post-processing transformation.
type Step string

// Known post-processing steps.
const (
	StepSourceMaps  Step = "source_maps"
	StepMinify      Step = "minify"
	StepAutoprefix  Step = "autoprefix"
	StepDropConsole Step = "drop_console"
	StepLossy       Step = "lossy"
	StepProgressive Step = "progressive"
)

// StepSet is an immutable set of enabled steps.
type StepSet struct {
	members map[Step]struct{}
}

func newStepSet(steps ...Step) StepSet {
	members := make(map[Step]struct{}, len(steps))
	for _, step := range steps {
		members[step] = struct{}{}
	}
	return StepSet{members: members}
}

// Has reports whether the step is enabled.
func (set StepSet) Has(step Step) bool {
	_, present := set.members[step]
	return present
}

// Steps returns the enabled steps sorted by name.
func (set StepSet) Steps() []Step {
	steps := make([]Step, 0, len(set.members))
	for step := range set.members {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(left, right int) bool { return steps[left] < steps[right] })
	return steps
}

// Len returns the number of enabled steps.
func (set StepSet) Len() int {
	return len(set.members)
}

type stepKey struct {
	mode       buildconfig.Mode
	assetClass buildconfig.AssetClass
}

var stepTable = map[stepKey][]Step{
	{mode: buildconfig.ModeProduction, assetClass: buildconfig.AssetClassStyles}:    {StepAutoprefix, StepMinify},
	{mode: buildconfig.ModeDevelopment, assetClass: buildconfig.AssetClassStyles}:   {StepAutoprefix, StepSourceMaps},
	{mode: buildconfig.ModeProduction, assetClass: buildconfig.AssetClassScripts}:   {StepMinify, StepDropConsole},
	{mode: buildconfig.ModeDevelopment, assetClass: buildconfig.AssetClassScripts}:  {StepSourceMaps},
	{mode: buildconfig.ModeProduction, assetClass: buildconfig.AssetClassImages}:    {StepLossy, StepProgressive},
	{mode: buildconfig.ModeProduction, assetClass: buildconfig.AssetClassTemplates}: {StepMinify},
}

// EnabledSteps returns the steps that apply to the asset class in the given mode.
// Combinations absent from the table enable nothing.
func EnabledSteps(mode buildconfig.Mode, assetClass buildconfig.AssetClass) StepSet {
	return newStepSet(stepTable[stepKey{mode: mode, assetClass: assetClass}]...)
}

// ForConfiguration is a shorthand for EnabledSteps using the configuration's mode.
func ForConfiguration(configuration buildconfig.Configuration, assetClass buildconfig.AssetClass) StepSet {
	return EnabledSteps(configuration.Mode(), assetClass)
}
