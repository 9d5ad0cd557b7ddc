package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/pipeline"
)

const (
	sourceMapVersionConstant       = 3
	sourceMapExtensionConstant     = ".map"
	sourceMappingURLTemplate       = "//# sourceMappingURL=%s\n"
	base64VLQAlphabetConstant      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	vlqContinuationBitConstant     = 32
	vlqValueMaskConstant           = 31
	vlqShiftConstant               = 5
	scriptLineSeparatorConstant    = "\n"
	sourceMapLineSeparatorConstant = ";"
)

// ScriptBundler concatenates and compresses scripts.
type ScriptBundler interface {
	Concatenate(executionContext context.Context, sourcePattern string, outputPath string, steps pipeline.StepSet) error
	Compress(executionContext context.Context, outputPath string, steps pipeline.StepSet) error
}

// ConcatBundler joins scripts in lexical order and optionally writes a line-level source map.
type ConcatBundler struct {
	minifier *Minifier
	logger   *zap.Logger
}

// NewConcatBundler constructs a ConcatBundler.
func NewConcatBundler(minifier *Minifier, logger *zap.Logger) ConcatBundler {
	if minifier == nil {
		minifier = NewMinifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return ConcatBundler{minifier: minifier, logger: logger}
}

type sourceMapDocument struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Concatenate writes the matched sources to outputPath. With the source_maps step it also writes
// outputPath+".map" and links it from the bundle.
func (bundler ConcatBundler) Concatenate(executionContext context.Context, sourcePattern string, outputPath string, steps pipeline.StepSet) error {
	matchedFiles, expandError := ExpandGlob(sourcePattern)
	if expandError != nil {
		return expandError
	}

	var bundle strings.Builder
	mapDirectory := filepath.Dir(outputPath)
	sourceMap := sourceMapDocument{
		Version:        sourceMapVersionConstant,
		File:           filepath.Base(outputPath),
		Sources:        make([]string, 0, len(matchedFiles)),
		SourcesContent: make([]string, 0, len(matchedFiles)),
		Names:          []string{},
	}
	mappingLines := make([]string, 0)
	previousSourceIndex := 0
	previousSourceLine := 0

	for sourceIndex, matchedFile := range matchedFiles {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		content, readError := os.ReadFile(matchedFile.Path)
		if readError != nil {
			return fmt.Errorf("assets.scripts %s: %w", matchedFile.Path, readError)
		}
		normalizedContent := strings.TrimSuffix(strings.ReplaceAll(string(content), "\r\n", scriptLineSeparatorConstant), scriptLineSeparatorConstant)
		bundle.WriteString(normalizedContent)
		bundle.WriteString(scriptLineSeparatorConstant)

		relativeSource, relativeError := filepath.Rel(mapDirectory, matchedFile.Path)
		if relativeError != nil {
			relativeSource = matchedFile.Path
		}
		sourceMap.Sources = append(sourceMap.Sources, filepath.ToSlash(relativeSource))
		sourceMap.SourcesContent = append(sourceMap.SourcesContent, string(content))

		for sourceLine := range strings.Split(normalizedContent, scriptLineSeparatorConstant) {
			segment := encodeVLQ(0) + encodeVLQ(sourceIndex-previousSourceIndex) + encodeVLQ(sourceLine-previousSourceLine) + encodeVLQ(0)
			mappingLines = append(mappingLines, segment)
			previousSourceIndex = sourceIndex
			previousSourceLine = sourceLine
		}
	}

	if steps.Has(pipeline.StepSourceMaps) {
		sourceMap.Mappings = strings.Join(mappingLines, sourceMapLineSeparatorConstant)
		encodedMap, encodeError := json.Marshal(sourceMap)
		if encodeError != nil {
			return fmt.Errorf("assets.scripts source map: %w", encodeError)
		}
		mapPath := outputPath + sourceMapExtensionConstant
		if writeError := writeFile(mapPath, encodedMap); writeError != nil {
			return fmt.Errorf("assets.scripts %s: %w", mapPath, writeError)
		}
		bundle.WriteString(fmt.Sprintf(sourceMappingURLTemplate, filepath.Base(mapPath)))
	}

	if writeError := writeFile(outputPath, []byte(bundle.String())); writeError != nil {
		return fmt.Errorf("assets.scripts %s: %w", outputPath, writeError)
	}

	bundler.logger.Debug(
		"scripts_concatenated",
		zap.String("output", outputPath),
		zap.Int("sources", len(matchedFiles)),
		zap.Bool("source_map", steps.Has(pipeline.StepSourceMaps)),
	)
	return nil
}

// Compress applies drop_console and minify to the bundle in place.
func (bundler ConcatBundler) Compress(executionContext context.Context, outputPath string, steps pipeline.StepSet) error {
	if !steps.Has(pipeline.StepDropConsole) && !steps.Has(pipeline.StepMinify) {
		return nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	content, readError := os.ReadFile(outputPath)
	if readError != nil {
		return fmt.Errorf("assets.scripts %s: %w", outputPath, readError)
	}
	if steps.Has(pipeline.StepDropConsole) {
		stripped, stripError := DropConsoleStatements(string(content))
		if stripError != nil {
			return fmt.Errorf("assets.scripts %s: %w", outputPath, stripError)
		}
		content = []byte(stripped)
	}
	if steps.Has(pipeline.StepMinify) {
		minified, minifyError := bundler.minifier.Bytes(MediaTypeJavaScript, content)
		if minifyError != nil {
			return fmt.Errorf("assets.scripts %s: %w", outputPath, minifyError)
		}
		content = minified
	}
	return writeFile(outputPath, content)
}

func encodeVLQ(value int) string {
	unsigned := value << 1
	if value < 0 {
		unsigned = (-value << 1) | 1
	}

	var encoded strings.Builder
	for {
		digit := unsigned & vlqValueMaskConstant
		unsigned >>= vlqShiftConstant
		if unsigned > 0 {
			digit |= vlqContinuationBitConstant
		}
		encoded.WriteByte(base64VLQAlphabetConstant[digit])
		if unsigned == 0 {
			return encoded.String()
		}
	}
}
