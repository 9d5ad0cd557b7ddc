package taskgraph

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	subtreeSuffixConstant      = "/**"
	sampleSegmentConstant      = "x"
	globMetaCharactersConstant = "*?[{"
)

// normalizeScope converts an output declaration into a doublestar pattern.
// Plain paths cover their whole subtree.
func normalizeScope(output string) string {
	cleaned := path.Clean(filepath.ToSlash(strings.TrimSpace(output)))
	if strings.ContainsAny(cleaned, globMetaCharactersConstant) {
		return cleaned
	}
	if cleaned == "." {
		return "**"
	}
	return cleaned + subtreeSuffixConstant
}

// samplePath produces a concrete path matched by a scope, or false when the scope uses
// character classes or alternatives that cannot be sampled.
func samplePath(scope string) (string, bool) {
	if strings.ContainsAny(scope, "[{") {
		return "", false
	}
	sample := strings.ReplaceAll(scope, "**", sampleSegmentConstant)
	sample = strings.ReplaceAll(sample, "*", sampleSegmentConstant)
	sample = strings.ReplaceAll(sample, "?", sampleSegmentConstant)
	return sample, true
}

// outputScopesOverlap reports whether two output declarations may address the same file.
// Scopes that cannot be sampled, or that both use wildcards in the same segment, fall back to
// comparing their static directory prefixes.
func outputScopesOverlap(firstOutput string, secondOutput string) bool {
	firstScope := normalizeScope(firstOutput)
	secondScope := normalizeScope(secondOutput)

	firstSample, firstSampled := samplePath(firstScope)
	secondSample, secondSampled := samplePath(secondScope)
	if firstSampled && secondSampled {
		if matchScope(firstScope, secondSample) || matchScope(secondScope, firstSample) {
			return true
		}
		if !sharesWildcardSegment(firstScope, secondScope) {
			return false
		}
	}

	firstBase, _ := doublestar.SplitPattern(firstScope)
	secondBase, _ := doublestar.SplitPattern(secondScope)
	return pathContains(firstBase, secondBase) || pathContains(secondBase, firstBase)
}

// sharesWildcardSegment reports whether both scopes carry wildcards in the same segment while every
// earlier segment is compatible. Samples of such scopes can miss names matched by both, as with a*
// and *b.
func sharesWildcardSegment(firstScope string, secondScope string) bool {
	firstSegments := strings.Split(firstScope, "/")
	secondSegments := strings.Split(secondScope, "/")
	for segmentIndex := 0; segmentIndex < len(firstSegments) && segmentIndex < len(secondSegments); segmentIndex++ {
		firstSegment := firstSegments[segmentIndex]
		secondSegment := secondSegments[segmentIndex]
		if firstSegment == "**" || secondSegment == "**" {
			return false
		}
		firstWildcard := strings.ContainsAny(firstSegment, globMetaCharactersConstant)
		secondWildcard := strings.ContainsAny(secondSegment, globMetaCharactersConstant)
		switch {
		case firstWildcard && secondWildcard:
			return true
		case firstWildcard:
			if !matchScope(firstSegment, secondSegment) {
				return false
			}
		case secondWildcard:
			if !matchScope(secondSegment, firstSegment) {
				return false
			}
		case firstSegment != secondSegment:
			return false
		}
	}
	return false
}

func matchScope(scope string, candidate string) bool {
	matched, matchError := doublestar.Match(scope, candidate)
	return matchError == nil && matched
}

func pathContains(parent string, child string) bool {
	if parent == "." || parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}
