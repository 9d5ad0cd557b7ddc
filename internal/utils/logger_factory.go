package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	consoleTimeLayoutConstant            = "15:04:05"
	structuredTimeKeyConstant            = "timestamp"
	structuredMessageKeyConstant         = "message"
	structuredLevelKeyConstant           = "level"
	structuredCallerKeyConstant          = "caller"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported log encodings.
type LogFormat string

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

var logLevels = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// LoggerOutputs groups the loggers produced for a single CLI invocation.
type LoggerOutputs struct {
	// DiagnosticLogger receives task lifecycle events and tool output.
	DiagnosticLogger *zap.Logger
	// ConsoleLogger prints bare progress lines; it is a no-op for structured output.
	ConsoleLogger *zap.Logger
}

// LoggerFactory creates zap loggers for the requested level and format.
type LoggerFactory struct {
	output func() zapcore.WriteSyncer
}

// NewLoggerFactory constructs a LoggerFactory writing to standard error.
func NewLoggerFactory() LoggerFactory {
	return LoggerFactory{output: func() zapcore.WriteSyncer { return zapcore.Lock(os.Stderr) }}
}

// NewLoggerFactoryWithOutput constructs a LoggerFactory writing to the supplied destination.
// Destinations that buffer are flushed after every entry.
func NewLoggerFactoryWithOutput(destination io.Writer) LoggerFactory {
	return LoggerFactory{output: func() zapcore.WriteSyncer {
		return zapcore.Lock(zapcore.AddSync(NewFlushingWriter(destination)))
	}}
}

// CreateLoggerOutputs builds the diagnostic and console loggers.
func (factory LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, known := logLevels[LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel))))]
	if !known {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogLevelTemplateConstant, logLevel)
	}

	var destination zapcore.WriteSyncer
	if factory.output != nil {
		destination = factory.output()
	} else {
		destination = zapcore.Lock(os.Stderr)
	}

	switch LogFormat(strings.ToLower(strings.TrimSpace(string(logFormat)))) {
	case LogFormatStructured:
		return LoggerOutputs{
			DiagnosticLogger: zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(structuredEncoderConfiguration()), destination, zapLevel), zap.AddCaller()),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		consoleEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:     structuredMessageKeyConstant,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeDuration: zapcore.StringDurationEncoder,
		})
		return LoggerOutputs{
			DiagnosticLogger: zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(diagnosticEncoderConfiguration()), destination, zapLevel)),
			ConsoleLogger:    zap.New(zapcore.NewCore(consoleEncoder, destination, zapLevel)),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, logFormat)
	}
}

func structuredEncoderConfiguration() zapcore.EncoderConfig {
	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.TimeKey = structuredTimeKeyConstant
	encoderConfiguration.MessageKey = structuredMessageKeyConstant
	encoderConfiguration.LevelKey = structuredLevelKeyConstant
	encoderConfiguration.CallerKey = structuredCallerKeyConstant
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfiguration.EncodeDuration = zapcore.StringDurationEncoder
	return encoderConfiguration
}

func diagnosticEncoderConfiguration() zapcore.EncoderConfig {
	encoderConfiguration := zap.NewDevelopmentEncoderConfig()
	encoderConfiguration.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
	encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfiguration
}
