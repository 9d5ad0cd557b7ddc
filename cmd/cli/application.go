package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/execshell"
	"github.com/tyemirov/assetflow/internal/utils"
	flagutils "github.com/tyemirov/assetflow/internal/utils/flags"
	"github.com/tyemirov/assetflow/internal/version"
)

const (
	applicationNameConstant                                          = "assetflow"
	applicationShortDescriptionConstant                              = "Declarative front-end asset builds"
	applicationLongDescriptionConstant                               = "assetflow compiles stylesheets, bundles scripts, copies and optimizes static assets, and serves the result with live reload. Without a subcommand it cleans, builds, serves and watches the project."
	configFileFlagNameConstant                                       = "config"
	configFileFlagUsageConstant                                      = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                                         = "log-level"
	logLevelFlagUsageConstant                                        = "Override the configured log level."
	logFormatFlagNameConstant                                        = "log-format"
	logFormatFlagUsageConstant                                       = "Override the configured log format (structured or console)."
	configurationInitializationFlagNameConstant                      = "init"
	configurationInitializationFlagUsageConstant                     = "Write the embedded default configuration to local (./assetflow.yaml) or user ($HOME/.assetflow/assetflow.yaml)."
	configurationInitializationDefaultScopeConstant                  = "local"
	configurationInitializationForceFlagNameConstant                 = "force"
	configurationInitializationForceFlagUsageConstant                = "Overwrite an existing configuration file when initializing."
	configurationInitializationScopeLocalConstant                    = "local"
	configurationInitializationScopeUserConstant                     = "user"
	configurationInitializationUnsupportedScopeTemplateConstant      = "unsupported initialization scope %q"
	configurationInitializationWorkingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	configurationInitializationWorkingDirectoryEmptyErrorConstant    = "working directory is empty"
	configurationInitializationHomeDirectoryErrorTemplateConstant    = "unable to determine user home directory: %w"
	configurationInitializationHomeDirectoryEmptyErrorConstant       = "user home directory is empty"
	configurationInitializationContentUnavailableErrorConstant       = "embedded configuration content is unavailable"
	configurationInitializationDirectoryErrorTemplateConstant        = "unable to ensure configuration directory %s: %w"
	configurationInitializationExistingFileTemplateConstant          = "configuration file already exists at %s (use --force to overwrite)"
	configurationInitializationExistingDirectoryTemplateConstant     = "configuration path %s is a directory"
	configurationInitializationDirectoryConflictTemplateConstant     = "configuration directory path %s is not a directory"
	configurationInitializationWriteErrorTemplateConstant            = "unable to write configuration file %s: %w"
	configurationInitializationSuccessMessageConstant                = "configuration file created"
	commonConfigurationKeyConstant                                   = "common"
	commonLogLevelConfigKeyConstant                                  = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                                 = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant                                        = "ASSETFLOW"
	configurationNameConstant                                        = "assetflow"
	configurationTypeConstant                                        = "yaml"
	configurationFileNameConstant                                    = configurationNameConstant + "." + configurationTypeConstant
	configurationDirectoryPermissionConstant                         = 0o755
	configurationFilePermissionConstant                              = 0o600
	configurationInitializedMessageConstant                          = "configuration initialized"
	configurationLogLevelFieldConstant                               = "log_level"
	configurationLogFormatFieldConstant                              = "log_format"
	configurationFileFieldConstant                                   = "config_file"
	xdgConfigHomeEnvironmentVariableConstant                         = "XDG_CONFIG_HOME"
	configurationLoadErrorTemplateConstant                           = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                              = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                                  = "unable to flush logger: %w"
	configurationInitializedConsoleTemplateConstant                  = "%s | log level=%s | log format=%s | config file=%s"
	rootCommandInfoMessageConstant                                   = "assetflow default run"
	logFieldCommandNameConstant                                      = "command_name"
	logFieldArgumentCountConstant                                    = "argument_count"
	loggerNotInitializedMessageConstant                              = "logger not initialized"
	defaultConfigurationSearchPathConstant                           = "."
	userConfigurationDirectoryNameConstant                           = ".assetflow"
	configurationSearchPathEnvironmentVariableConstant               = "ASSETFLOW_CONFIG_SEARCH_PATH"
	versionFlagNameConstant                                          = "version"
	versionFlagUsageConstant                                         = "Print the application version and exit"
	versionOutputTemplateConstant                                    = "assetflow version: %s\n"
	versionCommandUseNameConstant                                    = "version"
	versionCommandShortDescriptionConstant                           = "Print the assetflow version"
	versionCommandLongDescriptionConstant                            = "version prints the current assetflow release identifier. With --tools it also probes the configured sass and postcss executables."
	versionToolsFlagNameConstant                                     = "tools"
	versionToolsFlagUsageConstant                                    = "Also print the versions of the configured asset tools."
	toolVersionOutputTemplateConstant                                = "%s: %s\n"
)

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand                       *cobra.Command
	configurationLoader               *utils.ConfigurationLoader
	loggerFactory                     loggerOutputsFactory
	logger                            *zap.Logger
	consoleLogger                     *zap.Logger
	configuration                     ApplicationConfiguration
	configurationMetadata             utils.LoadedConfiguration
	configurationFilePath             string
	logLevelFlagValue                 string
	logFormatFlagValue                string
	commandContextAccessor            utils.CommandContextAccessor
	configurationInitializationScope  string
	configurationInitializationForced bool
	versionFlag                       bool
	versionResolver                   func(context.Context) string
	toolVersionResolver               func(context.Context, []execshell.CommandName) []version.ToolVersion
	exitFunction                      func(int)
	defaultRun                        func(*cobra.Command, []string) error
}

// NewApplication assembles the assetflow root command with its configuration loader and loggers.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		exitFunction:           os.Exit,
	}
	application.versionResolver = application.resolveVersion
	application.toolVersionResolver = application.resolveToolVersions

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		processConfigurationEnvironment().searchPaths(),
	)
	application.configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	application.configurationLoader.SetDecodeHooks(buildModeDecodeHook())

	rootCommand := &cobra.Command{
		Use:               applicationNameConstant,
		Short:             applicationShortDescriptionConstant,
		Long:              applicationLongDescriptionConstant,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: application.prepareCommand,
		RunE:              application.runRootCommand,
	}
	rootCommand.SetContext(context.Background())
	application.bindPersistentFlags(rootCommand)

	rootCommand.AddCommand(application.newVersionCommand())
	application.registerCommands(rootCommand)

	application.rootCommand = rootCommand
	return application
}

// prepareCommand loads configuration before every command and handles --version.
func (application *Application) prepareCommand(command *cobra.Command, _ []string) error {
	if initializationError := application.initializeConfiguration(command); initializationError != nil {
		return initializationError
	}

	versionRequested := application.versionFlag
	if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
		versionRequested = flagValue
	}
	if versionRequested {
		application.printVersion(command)
		application.exitFunction(0)
	}
	return nil
}

func (application *Application) bindPersistentFlags(rootCommand *cobra.Command) {
	persistentFlags := rootCommand.PersistentFlags()
	for _, stringFlag := range []struct {
		target       *string
		name         string
		defaultValue string
		usage        string
	}{
		{&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant},
		{&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant},
		{&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant},
		{&application.configurationInitializationScope, configurationInitializationFlagNameConstant, configurationInitializationDefaultScopeConstant, configurationInitializationFlagUsageConstant},
	} {
		persistentFlags.StringVar(stringFlag.target, stringFlag.name, stringFlag.defaultValue, stringFlag.usage)
	}
	persistentFlags.BoolVar(&application.configurationInitializationForced, configurationInitializationForceFlagNameConstant, false, configurationInitializationForceFlagUsageConstant)
	persistentFlags.BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	flagutils.BindExecutionFlags(rootCommand, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
// Interrupt and termination signals cancel the running command.
func (application *Application) Execute() error {
	normalizedArguments := flagutils.NormalizeToggleArguments(os.Args[1:])
	normalizedArguments = normalizeInitializationScopeArguments(normalizedArguments)
	application.rootCommand.SetArgs(normalizedArguments)

	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// normalizeInitializationScopeArguments rewrites a bare --init into --init=local so the optional scope
// does not swallow the next flag.
func normalizeInitializationScopeArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	flagPrefix := "--" + configurationInitializationFlagNameConstant
	defaultAssignment := flagPrefix + "=" + configurationInitializationDefaultScopeConstant

	normalizedArguments := make([]string, 0, len(arguments))
	for index, argument := range arguments {
		switch {
		case strings.HasPrefix(argument, flagPrefix+"=") && len(strings.TrimSpace(strings.TrimPrefix(argument, flagPrefix+"="))) == 0:
			argument = defaultAssignment
		case argument == flagPrefix && (index+1 == len(arguments) || strings.HasPrefix(arguments[index+1], "-")):
			argument = defaultAssignment
		}
		normalizedArguments = append(normalizedArguments, argument)
	}
	return normalizedArguments
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if loadError := application.loadConfiguration(command); loadError != nil {
		return loadError
	}
	if loggerError := application.configureLoggers(); loggerError != nil {
		return loggerError
	}
	application.logConfigurationInitialization()
	application.attachCommandContext(command)
	return nil
}

// loadConfiguration layers embedded defaults, the configuration file and ASSETFLOW_* variables,
// then applies --log-level and --log-format.
func (application *Application) loadConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if flagutils.Changed(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if flagutils.Changed(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	return nil
}

func (application *Application) configureLoggers() error {
	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = nopIfNil(loggerOutputs.DiagnosticLogger)
	application.consoleLogger = nopIfNil(loggerOutputs.ConsoleLogger)
	return nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// attachCommandContext records the configuration file, execution flags and log level on the command
// and its root so subcommands observe the same values.
func (application *Application) attachCommandContext(command *cobra.Command) {
	if command == nil {
		return
	}

	accessor := application.commandContextAccessor
	updatedContext := accessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
	updatedContext = accessor.WithExecutionFlags(updatedContext, flagutils.CollectExecutionFlags(command))
	updatedContext = accessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)

	command.SetContext(updatedContext)
	if rootCommand := command.Root(); rootCommand != nil {
		rootCommand.SetContext(updatedContext)
	}
}

// InitializeForCommand loads configuration and loggers as if the named command were about to run.
func (application *Application) InitializeForCommand(commandUse string) error {
	return application.initializeConfiguration(&cobra.Command{Use: commandUse})
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the effective configuration after initialization.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogFormat), string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	common := application.configuration.Common
	if !strings.EqualFold(strings.TrimSpace(common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	configurationFile := application.configurationMetadata.ConfigFileUsed
	if application.humanReadableLoggingEnabled() {
		application.consoleLogger.Debug(fmt.Sprintf(configurationInitializedConsoleTemplateConstant, configurationInitializedMessageConstant, common.LogLevel, common.LogFormat, configurationFile))
		return
	}
	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, common.LogFormat),
		zap.String(configurationFileFieldConstant, configurationFile),
	)
}

// runRootCommand handles --init, otherwise it runs the default build-serve-watch pipeline.
func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil || initializationHandled {
		return initializationError
	}

	application.logger.Debug(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)
	if application.defaultRun == nil {
		return command.Help()
	}
	return application.defaultRun(command, arguments)
}

// benignSyncErrors are returned by Sync on terminals and pipes that do not support fsync.
var benignSyncErrors = []error{syscall.ENOTSUP, syscall.EINVAL, syscall.EBADF, syscall.ENOTTY}

func (application *Application) flushLogger() error {
	for _, logger := range []*zap.Logger{application.logger, application.consoleLogger} {
		if logger == nil {
			continue
		}
		if syncError := logger.Sync(); syncError != nil && !isBenignSyncError(syncError) {
			return syncError
		}
	}
	return nil
}

func isBenignSyncError(syncError error) bool {
	for _, benign := range benignSyncErrors {
		if errors.Is(syncError, benign) {
			return true
		}
	}
	return false
}
