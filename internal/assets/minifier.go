package assets

import (
	"fmt"
	"os"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Media types handled by Minifier.
const (
	MediaTypeCSS        = "text/css"
	MediaTypeHTML       = "text/html"
	MediaTypeJavaScript = "application/javascript"
	MediaTypeSVG        = "image/svg+xml"
)

// Minifier compacts stylesheets, scripts, markup and vector images.
type Minifier struct {
	engine *minify.M
}

// NewMinifier registers the minifiers for every supported media type. HTML keeps conditional
// comments, default attribute values, document tags and end tags so templates stay valid for
// legacy browsers.
func NewMinifier() *Minifier {
	engine := minify.New()
	engine.AddFunc(MediaTypeCSS, css.Minify)
	engine.AddFunc(MediaTypeJavaScript, js.Minify)
	engine.Add(MediaTypeSVG, &svg.Minifier{})
	engine.Add(MediaTypeHTML, &html.Minifier{
		KeepConditionalComments: true,
		KeepDefaultAttrVals:     true,
		KeepDocumentTags:        true,
		KeepEndTags:             true,
	})
	return &Minifier{engine: engine}
}

// Bytes minifies content of the given media type.
func (minifier *Minifier) Bytes(mediaType string, content []byte) ([]byte, error) {
	minified, minifyError := minifier.engine.Bytes(mediaType, content)
	if minifyError != nil {
		return nil, fmt.Errorf("assets.minify %s: %w", mediaType, minifyError)
	}
	return minified, nil
}

// File minifies a file in place.
func (minifier *Minifier) File(filePath string, mediaType string) error {
	content, readError := os.ReadFile(filePath)
	if readError != nil {
		return fmt.Errorf("assets.minify %s: %w", filePath, readError)
	}
	minified, minifyError := minifier.Bytes(mediaType, content)
	if minifyError != nil {
		return fmt.Errorf("assets.minify %s: %w", filePath, minifyError)
	}
	return writeFile(filePath, minified)
}
