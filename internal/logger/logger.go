package logger

import (
	"github.com/aleister1102/siteguardian/internal/config"

	"github.com/rs/zerolog"
)

// Logger pairs the built zerolog instance with the config it came from
type Logger struct {
	zerolog zerolog.Logger
	config  LoggerConfig
}

func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

func (l *Logger) Config() LoggerConfig {
	return l.config
}

// New builds the process logger from the log section of the config.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	l, err := NewLoggerBuilder().WithConfig(cfg).Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return l.zerolog, nil
}

// SetLevel changes the process-wide log level. It backs log_level hot
// reload.
func SetLevel(levelStr string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}
