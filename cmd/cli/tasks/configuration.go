package tasks

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/tyemirov/assetflow/internal/assets"
	"github.com/tyemirov/assetflow/internal/buildconfig"
	"github.com/tyemirov/assetflow/internal/server"
)

const (
	defaultSassExecutable     = "sass"
	defaultSassLoadPath       = "bower_components/foundation/scss"
	defaultBrowserQuery       = "last 2 versions"
	defaultJPEGTranExecutable = "jpegtran"
	defaultScriptOutput       = "main.js"
	defaultServerHost         = "localhost"
	defaultServerPort         = 8080
	defaultServerFallback     = "index.html"
	defaultWatchDebounce      = 200 * time.Millisecond
	maximumServerPort         = 65535
	unknownAssetClassTemplate = "%w: unknown asset class %q in layout"
	invalidServerPortTemplate = "%w: server port %d is out of range"
)

// Configuration captures the build, toolchain, server and watch settings shared by the task commands.
type Configuration struct {
	Build     BuildConfiguration     `mapstructure:"build"`
	Toolchain ToolchainConfiguration `mapstructure:"toolchain"`
	Server    ServerConfiguration    `mapstructure:"server"`
	Watch     WatchConfiguration     `mapstructure:"watch"`
}

// BuildConfiguration controls how task runs are scheduled and where assets live.
type BuildConfiguration struct {
	Mode         buildconfig.Mode    `mapstructure:"mode"`
	Workers      int                 `mapstructure:"workers"`
	FailFast     bool                `mapstructure:"fail_fast"`
	Clean        bool                `mapstructure:"clean"`
	ScriptOutput string              `mapstructure:"script_output"`
	Layout       LayoutConfiguration `mapstructure:"layout"`
}

// LayoutConfiguration mirrors buildconfig.Layout with string keys for configuration files.
type LayoutConfiguration struct {
	SourceRoot      string                        `mapstructure:"source_root"`
	DestinationRoot string                        `mapstructure:"destination_root"`
	Assets          map[string]AssetConfiguration `mapstructure:"assets"`
}

// AssetConfiguration pairs a source glob with its destination directory.
type AssetConfiguration struct {
	Source      string `mapstructure:"source"`
	Destination string `mapstructure:"destination"`
}

// ToolchainConfiguration names the external executables used by the style tasks.
type ToolchainConfiguration struct {
	Sass          string   `mapstructure:"sass"`
	SassLoadPaths []string `mapstructure:"sass_load_paths"`
	PostCSS       string   `mapstructure:"postcss"`
	Browsers      string   `mapstructure:"browsers"`
	JPEGTran      string   `mapstructure:"jpegtran"`
}

// ServerConfiguration controls the development server started by serve and default.
type ServerConfiguration struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Fallback   string `mapstructure:"fallback"`
	LiveReload bool   `mapstructure:"live_reload"`
	Open       bool   `mapstructure:"open"`
	ChromePath string `mapstructure:"chrome_path"`
	Headless   bool   `mapstructure:"headless"`
}

// WatchConfiguration tunes change detection.
type WatchConfiguration struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultConfiguration provides the conventional app/ to build/ project settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Build: BuildConfiguration{
			Mode:         buildconfig.ModeDevelopment,
			Clean:        true,
			ScriptOutput: defaultScriptOutput,
			Layout:       layoutConfigurationFrom(buildconfig.DefaultLayout()),
		},
		Toolchain: ToolchainConfiguration{
			Sass:          defaultSassExecutable,
			SassLoadPaths: []string{defaultSassLoadPath},
			Browsers:      defaultBrowserQuery,
			JPEGTran:      defaultJPEGTranExecutable,
		},
		Server: ServerConfiguration{
			Host:       defaultServerHost,
			Port:       defaultServerPort,
			Fallback:   defaultServerFallback,
			LiveReload: true,
			Open:       true,
		},
		Watch: WatchConfiguration{Debounce: defaultWatchDebounce},
	}
}

// Sanitize trims values and fills unset fields from DefaultConfiguration.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	if len(strings.TrimSpace(string(configuration.Build.Mode))) == 0 {
		sanitized.Build.Mode = defaults.Build.Mode
	} else if parsedMode, parseError := buildconfig.ParseMode(string(configuration.Build.Mode)); parseError == nil {
		sanitized.Build.Mode = parsedMode
	}
	if configuration.Build.Workers < 0 {
		sanitized.Build.Workers = 0
	}
	sanitized.Build.ScriptOutput = strings.TrimSpace(configuration.Build.ScriptOutput)
	if len(sanitized.Build.ScriptOutput) == 0 {
		sanitized.Build.ScriptOutput = defaults.Build.ScriptOutput
	}
	sanitized.Build.Layout = configuration.Build.Layout.sanitize(defaults.Build.Layout)

	sanitized.Toolchain.Sass = strings.TrimSpace(configuration.Toolchain.Sass)
	if len(sanitized.Toolchain.Sass) == 0 {
		sanitized.Toolchain.Sass = defaults.Toolchain.Sass
	}
	sanitized.Toolchain.SassLoadPaths = trimValues(configuration.Toolchain.SassLoadPaths)
	sanitized.Toolchain.PostCSS = strings.TrimSpace(configuration.Toolchain.PostCSS)
	sanitized.Toolchain.Browsers = strings.TrimSpace(configuration.Toolchain.Browsers)
	if len(sanitized.Toolchain.Browsers) == 0 {
		sanitized.Toolchain.Browsers = defaults.Toolchain.Browsers
	}
	sanitized.Toolchain.JPEGTran = strings.TrimSpace(configuration.Toolchain.JPEGTran)

	sanitized.Server.Host = strings.TrimSpace(configuration.Server.Host)
	if len(sanitized.Server.Host) == 0 {
		sanitized.Server.Host = defaults.Server.Host
	}
	if configuration.Server.Port == 0 {
		sanitized.Server.Port = defaults.Server.Port
	}
	sanitized.Server.Fallback = strings.TrimSpace(configuration.Server.Fallback)
	sanitized.Server.ChromePath = strings.TrimSpace(configuration.Server.ChromePath)

	if configuration.Watch.Debounce <= 0 {
		sanitized.Watch.Debounce = defaults.Watch.Debounce
	}

	return sanitized
}

// Layout converts the configured layout into a buildconfig.Layout.
func (configuration LayoutConfiguration) Layout() (buildconfig.Layout, error) {
	knownClasses := make(map[buildconfig.AssetClass]struct{})
	for _, assetClass := range buildconfig.AssetClasses() {
		knownClasses[assetClass] = struct{}{}
	}

	assetNames := make([]string, 0, len(configuration.Assets))
	for assetName := range configuration.Assets {
		assetNames = append(assetNames, assetName)
	}
	sort.Strings(assetNames)

	layout := buildconfig.Layout{
		SourceRoot:      configuration.SourceRoot,
		DestinationRoot: configuration.DestinationRoot,
		Assets:          make(map[buildconfig.AssetClass]buildconfig.AssetPaths, len(configuration.Assets)),
	}
	for _, assetName := range assetNames {
		assetClass := buildconfig.AssetClass(strings.ToLower(strings.TrimSpace(assetName)))
		if _, known := knownClasses[assetClass]; !known {
			return buildconfig.Layout{}, fmt.Errorf(unknownAssetClassTemplate, buildconfig.ErrInvalidConfiguration, assetName)
		}
		assetConfiguration := configuration.Assets[assetName]
		layout.Assets[assetClass] = buildconfig.AssetPaths{
			Source:      assetConfiguration.Source,
			Destination: assetConfiguration.Destination,
		}
	}
	return layout, nil
}

// ToolchainSettings converts the toolchain configuration for assets.NewToolchain.
func (configuration ToolchainConfiguration) ToolchainSettings() assets.ToolchainSettings {
	return assets.ToolchainSettings{
		SassExecutable:     configuration.Sass,
		SassLoadPaths:      append([]string(nil), configuration.SassLoadPaths...),
		PostCSSExecutable:  configuration.PostCSS,
		BrowserQuery:       configuration.Browsers,
		JPEGTranExecutable: configuration.JPEGTran,
	}
}

// Settings converts the server configuration for a build output root.
func (configuration ServerConfiguration) Settings(root string) (server.Settings, error) {
	if configuration.Port < 0 || configuration.Port > maximumServerPort {
		return server.Settings{}, fmt.Errorf(invalidServerPortTemplate, buildconfig.ErrInvalidConfiguration, configuration.Port)
	}
	return server.Settings{
		Host:       configuration.Host,
		Port:       configuration.Port,
		Root:       root,
		Fallback:   configuration.Fallback,
		LiveReload: configuration.LiveReload,
	}, nil
}

func (configuration LayoutConfiguration) sanitize(defaults LayoutConfiguration) LayoutConfiguration {
	sanitized := LayoutConfiguration{
		SourceRoot:      strings.TrimSpace(configuration.SourceRoot),
		DestinationRoot: strings.TrimSpace(configuration.DestinationRoot),
		Assets:          make(map[string]AssetConfiguration, len(defaults.Assets)),
	}
	if len(sanitized.SourceRoot) == 0 {
		sanitized.SourceRoot = defaults.SourceRoot
	}
	if len(sanitized.DestinationRoot) == 0 {
		sanitized.DestinationRoot = defaults.DestinationRoot
	}

	for assetName, assetConfiguration := range configuration.Assets {
		normalizedName := strings.ToLower(strings.TrimSpace(assetName))
		sanitized.Assets[normalizedName] = AssetConfiguration{
			Source:      strings.TrimSpace(assetConfiguration.Source),
			Destination: strings.TrimSpace(assetConfiguration.Destination),
		}
	}
	for assetName, defaultAsset := range defaults.Assets {
		configuredAsset := sanitized.Assets[assetName]
		if len(configuredAsset.Source) == 0 {
			configuredAsset.Source = rebase(defaultAsset.Source, defaults.SourceRoot, sanitized.SourceRoot)
		}
		if len(configuredAsset.Destination) == 0 {
			configuredAsset.Destination = rebase(defaultAsset.Destination, defaults.DestinationRoot, sanitized.DestinationRoot)
		}
		sanitized.Assets[assetName] = configuredAsset
	}
	return sanitized
}

// rebase moves a default path under a configured root so changing only the roots relocates every asset class.
func rebase(value string, fromRoot string, toRoot string) string {
	if value == fromRoot {
		return toRoot
	}
	relative, under := strings.CutPrefix(value, fromRoot+"/")
	if !under {
		return value
	}
	return path.Join(toRoot, relative)
}

func layoutConfigurationFrom(layout buildconfig.Layout) LayoutConfiguration {
	configuration := LayoutConfiguration{
		SourceRoot:      layout.SourceRoot,
		DestinationRoot: layout.DestinationRoot,
		Assets:          make(map[string]AssetConfiguration, len(layout.Assets)),
	}
	for assetClass, assetPaths := range layout.Assets {
		configuration.Assets[string(assetClass)] = AssetConfiguration{
			Source:      assetPaths.Source,
			Destination: assetPaths.Destination,
		}
	}
	return configuration
}

func trimValues(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		candidate := strings.TrimSpace(value)
		if len(candidate) == 0 {
			continue
		}
		trimmed = append(trimmed, candidate)
	}
	return trimmed
}
