package cli

import (
	_ "embed"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"

	"github.com/tyemirov/assetflow/cmd/cli/tasks"
	"github.com/tyemirov/assetflow/internal/buildconfig"
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration `mapstructure:"common"`
	Build     tasks.BuildConfiguration       `mapstructure:"build"`
	Toolchain tasks.ToolchainConfiguration   `mapstructure:"toolchain"`
	Server    tasks.ServerConfiguration      `mapstructure:"server"`
	Watch     tasks.WatchConfiguration       `mapstructure:"watch"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// TasksConfiguration projects the task-related sections onto the task command configuration.
func (configuration ApplicationConfiguration) TasksConfiguration() tasks.Configuration {
	return tasks.Configuration{
		Build:     configuration.Build,
		Toolchain: configuration.Toolchain,
		Server:    configuration.Server,
		Watch:     configuration.Watch,
	}.Sanitize()
}

type configurationInitializationPlan struct {
	DirectoryPath string
	FilePath      string
}

// EmbeddedDefaultConfiguration returns the bundled default configuration and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), embeddedDefaultConfiguration...), configurationTypeConstant
}

func buildModeDecodeHook() mapstructure.DecodeHookFuncType {
	modeType := reflect.TypeOf(buildconfig.Mode(""))
	return func(sourceType reflect.Type, targetType reflect.Type, value any) (any, error) {
		if targetType != modeType || sourceType.Kind() != reflect.String {
			return value, nil
		}
		rawMode, isString := value.(string)
		if !isString {
			return value, nil
		}
		if len(strings.TrimSpace(rawMode)) == 0 {
			return buildconfig.Mode(""), nil
		}
		return buildconfig.ParseMode(rawMode)
	}
}

func (application *Application) tasksConfiguration() tasks.Configuration {
	return application.configuration.TasksConfiguration()
}
