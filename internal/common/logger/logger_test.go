package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
)

func fileConfig(t *testing.T, level string) (configtypes.LogConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.log")
	return configtypes.LogConfig{
		Level: level,
		File: configtypes.FileLogConfig{
			Enabled: true,
			Path:    path,
			Format:  configtypes.LogFormatJSON,
		},
	}, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNewLogger_File(t *testing.T) {
	cfg, path := fileConfig(t, configtypes.LogLevelDebug)

	log, err := NewLogger(cfg)
	require.NoError(t, err)

	log.Debug("scope mapped", zap.Int("tags", 3))
	_ = log.Sync()

	content := readLog(t, path)
	assert.Contains(t, content, `"msg":"scope mapped"`)
	assert.Contains(t, content, `"tags":3`)
}

func TestNewLogger_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  configtypes.LogConfig
		wantErr string
	}{
		{
			name:    "no outputs",
			config:  configtypes.LogConfig{Level: configtypes.LogLevelInfo},
			wantErr: "at least one log output",
		},
		{
			name: "file without path",
			config: configtypes.LogConfig{
				File: configtypes.FileLogConfig{Enabled: true},
			},
			wantErr: "file.path must be specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.config)
			require.Error(t, err)
			assert.Nil(t, log)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		skip  []string
	}{
		{configtypes.LogLevelDebug, []string{"debug line", "info line"}, nil},
		{configtypes.LogLevelInfo, []string{"info line", "warn line"}, []string{"debug line"}},
		{configtypes.LogLevelWarn, []string{"warn line"}, []string{"info line"}},
		{configtypes.LogLevelError, []string{"error line"}, []string{"warn line"}},
		{"", []string{"info line"}, []string{"debug line"}},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			cfg, path := fileConfig(t, tt.level)
			log, err := NewLogger(cfg)
			require.NoError(t, err)

			log.Debug("debug line")
			log.Info("info line")
			log.Warn("warn line")
			log.Error("error line")
			_ = log.Sync()

			content := readLog(t, path)
			for _, msg := range tt.want {
				assert.Contains(t, content, msg)
			}
			for _, msg := range tt.skip {
				assert.NotContains(t, content, msg)
			}
		})
	}
}

func TestStartupOverride_SwitchAndShutdown(t *testing.T) {
	cfg, path := fileConfig(t, configtypes.LogLevelError)

	log, err := NewLoggerWithStartupOverride(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, log.Level())

	log.Info("listening")
	log.SwitchToConfiguredLevel()
	assert.Equal(t, zapcore.ErrorLevel, log.Level())
	log.Info("hidden after switch")

	log.EnsureInfoLevelForShutdown()
	assert.Equal(t, zapcore.InfoLevel, log.Level())
	log.Info("shutting down")
	_ = log.Sync()

	content := readLog(t, path)
	assert.Contains(t, content, "listening")
	assert.NotContains(t, content, "hidden after switch")
	assert.Contains(t, content, "shutting down")
}

func TestStartupOverride_VerboseLevelKept(t *testing.T) {
	cfg, _ := fileConfig(t, configtypes.LogLevelDebug)

	log, err := NewLoggerWithStartupOverride(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, log.Level())
}

func TestPerOutputLevelOverride(t *testing.T) {
	cfg, path := fileConfig(t, configtypes.LogLevelDebug)
	cfg.File.Level = configtypes.LogLevelWarn

	log, err := NewLogger(cfg)
	require.NoError(t, err)

	log.Info("info line")
	log.Warn("warn line")
	_ = log.Sync()

	content := readLog(t, path)
	assert.NotContains(t, content, "info line")
	assert.Contains(t, content, "warn line")
}

func TestNewDefaultLogger(t *testing.T) {
	log, err := NewDefaultLogger()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, log.Level())
}
