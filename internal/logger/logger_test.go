package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLogger(t *testing.T) {
	_, err := New(config.NewDefaultLogConfig())
	require.NoError(t, err)
}

func TestBuilder_JSONToConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewDefaultLogConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "debug"

	l, err := NewLoggerBuilder().WithConfig(cfg).WithConsoleOutput(&buf).Build()
	require.NoError(t, err)

	l.GetZerolog().Debug().Str("component", "Test").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "Test", entry["component"])
	assert.Equal(t, "debug", entry["level"])
}

func TestBuilder_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "app.log")
	cfg := config.NewDefaultLogConfig()
	cfg.LogFile = logFile
	cfg.LogFormat = "json"

	l, err := NewLoggerBuilder().WithConfig(cfg).WithConsoleOutput(&bytes.Buffer{}).Build()
	require.NoError(t, err)
	l.GetZerolog().Info().Msg("to file")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestBuilder_InvalidConfig(t *testing.T) {
	cfg := DefaultLoggerConfig()
	cfg.Console = false
	_, err := NewLoggerBuilder().WithLoggerConfig(cfg).Build()
	assert.Error(t, err)

	cfg = DefaultLoggerConfig()
	cfg.File.Path = filepath.Join(t.TempDir(), "app.log")
	cfg.File.MaxSizeMB = 0
	_, err = NewLoggerBuilder().WithLoggerConfig(cfg).Build()
	assert.Error(t, err)
}

func TestBuilder_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewDefaultLogConfig()
	cfg.LogFormat = "json"
	cfg.Service = "sg-test"

	l, err := NewLoggerBuilder().WithConfig(cfg).WithConsoleOutput(&buf).Build()
	require.NoError(t, err)
	l.GetZerolog().Info().Msg("tagged")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sg-test", entry["service"])
}

func TestFromLogConfig(t *testing.T) {
	lc := FromLogConfig(config.LogConfig{LogLevel: "WARN", LogFormat: "text", MaxLogAgeDays: 7, CompressLogs: true})

	assert.Equal(t, zerolog.WarnLevel, lc.Level)
	assert.Equal(t, FormatText, lc.Format)
	assert.True(t, lc.Console)
	assert.False(t, lc.File.Enabled())
	assert.Equal(t, config.DefaultMaxLogSizeMB, lc.File.MaxSizeMB)
	assert.Equal(t, config.DefaultMaxLogBackups, lc.File.MaxBackups)
	assert.Equal(t, 7, lc.File.MaxAgeDays)
	assert.True(t, lc.File.Compress)
	assert.Empty(t, lc.Fields)

	lc = FromLogConfig(config.LogConfig{LogLevel: "nope"})
	assert.Equal(t, zerolog.InfoLevel, lc.Level)
	assert.Equal(t, FormatConsole, lc.Format)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: " Debug ", want: zerolog.DebugLevel},
		{in: "ERROR", want: zerolog.ErrorLevel},
		{in: "verbose", want: zerolog.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	cfg := config.NewDefaultLogConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "debug"
	l, err := NewLoggerBuilder().WithConfig(cfg).WithConsoleOutput(&buf).Build()
	require.NoError(t, err)

	require.NoError(t, SetLevel("warn"))
	l.GetZerolog().Info().Msg("hidden")
	assert.Empty(t, buf.String())
	l.GetZerolog().Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestBuilder_ConsoleFormatFileHasNoColor(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	cfg := config.NewDefaultLogConfig()
	cfg.LogFile = logFile
	cfg.LogFormat = "console"

	l, err := NewLoggerBuilder().WithConfig(cfg).WithConsoleOutput(&bytes.Buffer{}).Build()
	require.NoError(t, err)
	l.GetZerolog().Warn().Msg("plain")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plain")
	assert.NotContains(t, string(data), "\x1b[")
}
