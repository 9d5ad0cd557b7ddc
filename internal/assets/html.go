package assets

import (
	"context"

	"github.com/tyemirov/assetflow/internal/pipeline"
)

// HTMLMinifier compacts HTML documents in place.
type HTMLMinifier interface {
	Minify(executionContext context.Context, documentPath string, steps pipeline.StepSet) error
}

// TemplateMinifier minifies HTML templates when the minify step is enabled.
type TemplateMinifier struct {
	minifier *Minifier
}

// NewTemplateMinifier constructs a TemplateMinifier.
func NewTemplateMinifier(minifier *Minifier) TemplateMinifier {
	if minifier == nil {
		minifier = NewMinifier()
	}
	return TemplateMinifier{minifier: minifier}
}

// Minify rewrites documentPath in production builds and leaves it untouched otherwise.
func (templateMinifier TemplateMinifier) Minify(executionContext context.Context, documentPath string, steps pipeline.StepSet) error {
	if !steps.Has(pipeline.StepMinify) {
		return nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	return templateMinifier.minifier.File(documentPath, MediaTypeHTML)
}
