package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
)

// DynamicLogger is a zap.Logger whose output levels can be moved after startup.
// The gateway boots at INFO so the listen and config lines are always visible,
// then drops to the configured level once the server is serving.
type DynamicLogger struct {
	*zap.Logger
	outputs    []output
	configured configtypes.LogConfig
}

type output struct {
	name  string
	level zap.AtomicLevel
}

// SwitchToConfiguredLevel moves every output to its configured level
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	global := parseLogLevel(dl.configured.Level)
	dl.Info("Switching logger to configured level", zap.String("level", global.String()))

	for _, out := range dl.outputs {
		override := dl.configured.Console.Level
		if out.name == "file" {
			override = dl.configured.File.Level
		}
		out.level.SetLevel(resolveLogLevel(override, global))
	}
}

// EnsureInfoLevelForShutdown lowers any output above INFO so the shutdown sequence is logged
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, out := range dl.outputs {
		if out.level.Level() > zap.InfoLevel {
			out.level.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

// Level returns the lowest level any output currently accepts
func (dl *DynamicLogger) Level() zapcore.Level {
	lowest := zapcore.FatalLevel
	for _, out := range dl.outputs {
		if out.level.Level() < lowest {
			lowest = out.level.Level()
		}
	}
	return lowest
}

// NewLogger builds a logger with one core per enabled output
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	global := parseLogLevel(config.Level)

	var cores []zapcore.Core
	var outputs []output

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.Console.Level, global))
		outputs = append(outputs, output{name: "console", level: level})
		cores = append(cores, zapcore.NewCore(createEncoder(config.Console.Format), zapcore.Lock(os.Stdout), level))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.File.Level, global))
		outputs = append(outputs, output{name: "file", level: level})
		writer := NewRotatingWriter(config.File.Path, config.File.Rotation)
		cores = append(cores, zapcore.NewCore(createEncoder(config.File.Format), zapcore.AddSync(writer), level))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	return &DynamicLogger{
		Logger:     zap.New(zapcore.NewTee(cores...)),
		outputs:    outputs,
		configured: config,
	}, nil
}

// NewLoggerWithStartupOverride starts at INFO when the configured level is quieter than INFO.
// Call SwitchToConfiguredLevel once startup is complete.
func NewLoggerWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	if parseLogLevel(config.Level) <= zap.InfoLevel {
		return NewLogger(config)
	}

	startup := config
	startup.Level = configtypes.LogLevelInfo
	if startup.Console.Enabled && startup.Console.Level == "" {
		startup.Console.Level = configtypes.LogLevelInfo
	}
	if startup.File.Enabled && startup.File.Level == "" {
		startup.File.Level = configtypes.LogLevelInfo
	}

	dl, err := NewLogger(startup)
	if err != nil {
		return nil, err
	}
	dl.configured = config
	return dl, nil
}

// NewDefaultLogger is used before the configuration file has been read
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelInfo,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

// NewRotatingWriter returns a size-rotated file writer.
// Zero rotation values fall through to lumberjack's own defaults.
func NewRotatingWriter(path string, rotation configtypes.RotationConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	}
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func resolveLogLevel(override string, global zapcore.Level) zapcore.Level {
	if override != "" {
		return parseLogLevel(override)
	}
	return global
}

func createEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}
