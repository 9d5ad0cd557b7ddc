package buildconfig

import (
	"path"
	"sort"
)

// AssetClass names a category of front-end asset.
type AssetClass string

// Known asset classes.
const (
	AssetClassStyles    AssetClass = "styles"
	AssetClassScripts   AssetClass = "scripts"
	AssetClassImages    AssetClass = "images"
	AssetClassFonts     AssetClass = "fonts"
	AssetClassTemplates AssetClass = "templates"
)

const (
	defaultSourceRootConstant      = "app"
	defaultDestinationRootConstant = "build"
)

// AssetClasses returns every asset class in a stable order.
func AssetClasses() []AssetClass {
	return []AssetClass{
		AssetClassStyles,
		AssetClassScripts,
		AssetClassImages,
		AssetClassFonts,
		AssetClassTemplates,
	}
}

// AssetPaths pairs the source glob of an asset class with its destination directory.
type AssetPaths struct {
	Source      string
	Destination string
}

// Layout describes where sources live and where build output goes.
type Layout struct {
	SourceRoot      string
	DestinationRoot string
	Assets          map[AssetClass]AssetPaths
}

// DefaultLayout mirrors the conventional app/ to build/ project layout.
func DefaultLayout() Layout {
	return Layout{
		SourceRoot:      defaultSourceRootConstant,
		DestinationRoot: defaultDestinationRootConstant,
		Assets: map[AssetClass]AssetPaths{
			AssetClassStyles: {
				Source:      path.Join(defaultSourceRootConstant, "styles", "*.scss"),
				Destination: path.Join(defaultDestinationRootConstant, "styles"),
			},
			AssetClassScripts: {
				Source:      path.Join(defaultSourceRootConstant, "scripts", "*.js"),
				Destination: path.Join(defaultDestinationRootConstant, "scripts"),
			},
			AssetClassImages: {
				Source:      path.Join(defaultSourceRootConstant, "images", "**"),
				Destination: path.Join(defaultDestinationRootConstant, "images"),
			},
			AssetClassFonts: {
				Source:      path.Join(defaultSourceRootConstant, "fonts", "**"),
				Destination: path.Join(defaultDestinationRootConstant, "fonts"),
			},
			AssetClassTemplates: {
				Source:      path.Join(defaultSourceRootConstant, "*.html"),
				Destination: defaultDestinationRootConstant,
			},
		},
	}
}

func (layout Layout) clone() Layout {
	clonedAssets := make(map[AssetClass]AssetPaths, len(layout.Assets))
	for assetClass, assetPaths := range layout.Assets {
		clonedAssets[assetClass] = assetPaths
	}
	return Layout{
		SourceRoot:      layout.SourceRoot,
		DestinationRoot: layout.DestinationRoot,
		Assets:          clonedAssets,
	}
}

func (layout Layout) sortedClasses() []AssetClass {
	classes := make([]AssetClass, 0, len(layout.Assets))
	for assetClass := range layout.Assets {
		classes = append(classes, assetClass)
	}
	sort.Slice(classes, func(left, right int) bool { return classes[left] < classes[right] })
	return classes
}
