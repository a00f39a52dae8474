package logger

import (
	"strings"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/rs/zerolog"
)

// LogFormat selects how entries are rendered
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatConsole
	FormatText
)

func (lf LogFormat) String() string {
	switch lf {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return "console"
	}
}

// ParseFormat maps a config value to a LogFormat. Unknown values render as
// console output.
func ParseFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// ParseLevel accepts zerolog level names case-insensitively; "" means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, common.WrapError(err, "invalid log level")
	}
	return level, nil
}

// FileOutput describes the rotating log file. An empty Path disables it.
type FileOutput struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Enabled reports whether a file path is configured
func (fo FileOutput) Enabled() bool {
	return fo.Path != ""
}

// LoggerConfig is the resolved logger setup
type LoggerConfig struct {
	Level   zerolog.Level
	Format  LogFormat
	Console bool
	File    FileOutput
	// Fields are attached to every entry.
	Fields map[string]string
}

// DefaultLoggerConfig logs info and above to the console only
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:   zerolog.InfoLevel,
		Format:  FormatConsole,
		Console: true,
		File: FileOutput{
			MaxSizeMB:  config.DefaultMaxLogSizeMB,
			MaxBackups: config.DefaultMaxLogBackups,
			MaxAgeDays: config.DefaultMaxLogAgeDays,
		},
	}
}

// FromLogConfig resolves the application log section. Invalid levels fall
// back to info since config validation reports them before this runs.
func FromLogConfig(cfg config.LogConfig) LoggerConfig {
	lc := DefaultLoggerConfig()
	lc.Level, _ = ParseLevel(cfg.LogLevel)
	lc.Format = ParseFormat(cfg.LogFormat)
	lc.File.Path = cfg.LogFile
	lc.File.Compress = cfg.CompressLogs
	if cfg.MaxLogSizeMB > 0 {
		lc.File.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		lc.File.MaxBackups = cfg.MaxLogBackups
	}
	if cfg.MaxLogAgeDays > 0 {
		lc.File.MaxAgeDays = cfg.MaxLogAgeDays
	}
	if cfg.Service != "" {
		lc.Fields = map[string]string{"service": cfg.Service}
	}
	return lc
}
