package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/rs/zerolog"
)

// LoggerBuilder assembles a Logger from a LoggerConfig
type LoggerBuilder struct {
	config  LoggerConfig
	console io.Writer
}

func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{config: DefaultLoggerConfig(), console: os.Stderr}
}

// WithConfig resolves the application log section
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	lb.config = FromLogConfig(cfg)
	return lb
}

func (lb *LoggerBuilder) WithLoggerConfig(cfg LoggerConfig) *LoggerBuilder {
	lb.config = cfg
	return lb
}

// WithConsoleOutput redirects console output, mostly for tests
func (lb *LoggerBuilder) WithConsoleOutput(w io.Writer) *LoggerBuilder {
	lb.console = w
	return lb
}

// Build opens the outputs and sets the process-wide level. The standard
// library logger is routed through the result.
func (lb *LoggerBuilder) Build() (*Logger, error) {
	cfg := lb.config
	if !cfg.Console && !cfg.File.Enabled() {
		return nil, common.NewValidationError("outputs", "", "console or file output must be enabled")
	}
	if cfg.File.Enabled() && cfg.File.MaxSizeMB <= 0 {
		return nil, common.NewValidationError("max_size_mb", cfg.File.MaxSizeMB, "max size must be positive")
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, formatWriter(cfg.Format, lb.console, true))
	}
	if cfg.File.Enabled() {
		file, err := rotatingFile(cfg.File)
		if err != nil {
			return nil, common.WrapError(err, "failed to open log file")
		}
		writers = append(writers, formatWriter(cfg.Format, file, false))
	}

	zctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	for k, v := range cfg.Fields {
		zctx = zctx.Str(k, v)
	}
	zl := zctx.Logger()

	// The global level filters output so SetLevel can change it at runtime.
	zerolog.SetGlobalLevel(cfg.Level)
	stdlog.SetOutput(zl)
	stdlog.SetFlags(0)

	return &Logger{zerolog: zl, config: cfg}, nil
}
