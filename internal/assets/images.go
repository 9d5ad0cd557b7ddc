package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/pipeline"
)

const (
	jpegQualityConstant   = 82
	gifExtensionConstant  = ".gif"
	pngExtensionConstant  = ".png"
	jpgExtensionConstant  = ".jpg"
	jpegExtensionConstant = ".jpeg"
	svgExtensionConstant  = ".svg"
)

var progressiveJPEGArguments = []string{"-progressive", "-optimize", "-copy", "none"}

// ImageOptimizer shrinks image files in place.
type ImageOptimizer interface {
	Optimize(executionContext context.Context, imagePath string, steps pipeline.StepSet) (OptimizationResult, error)
}

// OptimizationResult reports the size change of one image.
type OptimizationResult struct {
	Path         string
	OriginalSize int
	FinalSize    int
	Rewritten    bool
}

// StandardImageOptimizer re-encodes PNG, JPEG and GIF files and minifies SVG files.
// A re-encoded raster image replaces the original only when it is smaller.
// Progressive JPEG output needs a jpegtran executable; see WithProgressiveEncoder.
type StandardImageOptimizer struct {
	minifier              *Minifier
	logger                *zap.Logger
	progressiveExecutor   CommandExecutor
	progressiveExecutable execshell.CommandName
}

// NewStandardImageOptimizer constructs a StandardImageOptimizer.
func NewStandardImageOptimizer(minifier *Minifier, logger *zap.Logger) StandardImageOptimizer {
	if minifier == nil {
		minifier = NewMinifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return StandardImageOptimizer{minifier: minifier, logger: logger}
}

// WithProgressiveEncoder returns a copy that rewrites JPEG files as progressive scans through the
// jpegtran executable when the progressive step is enabled. An empty executable disables it.
func (optimizer StandardImageOptimizer) WithProgressiveEncoder(executor CommandExecutor, executable string) StandardImageOptimizer {
	optimizer.progressiveExecutor = executor
	optimizer.progressiveExecutable = execshell.CommandName(strings.TrimSpace(executable))
	return optimizer
}

// Optimize rewrites imagePath when the lossy or progressive steps are enabled.
func (optimizer StandardImageOptimizer) Optimize(executionContext context.Context, imagePath string, steps pipeline.StepSet) (OptimizationResult, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return OptimizationResult{}, contextError
	}

	original, readError := os.ReadFile(imagePath)
	if readError != nil {
		return OptimizationResult{}, fmt.Errorf("assets.images %s: %w", imagePath, readError)
	}
	result := OptimizationResult{Path: imagePath, OriginalSize: len(original), FinalSize: len(original)}
	if !steps.Has(pipeline.StepLossy) && !steps.Has(pipeline.StepProgressive) {
		return result, nil
	}

	var candidate []byte
	var encodeError error
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case pngExtensionConstant:
		candidate, encodeError = reencodePNG(original)
	case jpgExtensionConstant, jpegExtensionConstant:
		if steps.Has(pipeline.StepLossy) {
			candidate, encodeError = reencodeJPEG(original)
		}
		if encodeError == nil && steps.Has(pipeline.StepProgressive) {
			source := original
			if candidate != nil && len(candidate) < len(original) {
				source = candidate
			}
			if progressive, converted := optimizer.encodeProgressive(executionContext, imagePath, source); converted {
				candidate = progressive
			}
		}
	case gifExtensionConstant:
		candidate, encodeError = reencodeGIF(original)
	case svgExtensionConstant:
		candidate, encodeError = optimizer.minifier.Bytes(MediaTypeSVG, original)
	}
	if encodeError != nil {
		return result, fmt.Errorf("assets.images %s: %w", imagePath, encodeError)
	}
	if candidate == nil || len(candidate) >= len(original) {
		return result, nil
	}

	if writeError := writeFile(imagePath, candidate); writeError != nil {
		return result, fmt.Errorf("assets.images %s: %w", imagePath, writeError)
	}
	result.FinalSize = len(candidate)
	result.Rewritten = true
	optimizer.logger.Debug(
		"image_optimized",
		zap.String("path", imagePath),
		zap.Int("original_bytes", result.OriginalSize),
		zap.Int("final_bytes", result.FinalSize),
	)
	return result, nil
}

// encodeProgressive pipes the JPEG through jpegtran. A missing or failing jpegtran leaves the
// baseline image in place and is only logged.
func (optimizer StandardImageOptimizer) encodeProgressive(executionContext context.Context, imagePath string, source []byte) ([]byte, bool) {
	if optimizer.progressiveExecutor == nil || len(optimizer.progressiveExecutable) == 0 {
		return nil, false
	}
	executionResult, executionError := optimizer.progressiveExecutor.Execute(executionContext, execshell.ShellCommand{
		Name: optimizer.progressiveExecutable,
		Details: execshell.CommandDetails{
			Arguments:     append([]string(nil), progressiveJPEGArguments...),
			StandardInput: source,
		},
	})
	if executionError != nil || len(executionResult.StandardOutput) == 0 {
		optimizer.logger.Warn(
			"image_progressive_skipped",
			zap.String("path", imagePath),
			zap.String("tool", string(optimizer.progressiveExecutable)),
			zap.Error(executionError),
		)
		return nil, false
	}
	return []byte(executionResult.StandardOutput), true
}

func reencodePNG(original []byte) ([]byte, error) {
	decoded, decodeError := png.Decode(bytes.NewReader(original))
	if decodeError != nil {
		return nil, decodeError
	}
	var encoded bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if encodeError := encoder.Encode(&encoded, decoded); encodeError != nil {
		return nil, encodeError
	}
	return encoded.Bytes(), nil
}

func reencodeJPEG(original []byte) ([]byte, error) {
	decoded, _, decodeError := image.Decode(bytes.NewReader(original))
	if decodeError != nil {
		return nil, decodeError
	}
	var encoded bytes.Buffer
	if encodeError := jpeg.Encode(&encoded, decoded, &jpeg.Options{Quality: jpegQualityConstant}); encodeError != nil {
		return nil, encodeError
	}
	return encoded.Bytes(), nil
}

func reencodeGIF(original []byte) ([]byte, error) {
	decoded, decodeError := gif.DecodeAll(bytes.NewReader(original))
	if decodeError != nil {
		return nil, decodeError
	}
	var encoded bytes.Buffer
	if encodeError := gif.EncodeAll(&encoded, decoded); encodeError != nil {
		return nil, encodeError
	}
	return encoded.Bytes(), nil
}
