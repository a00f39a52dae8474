package config

// LogConfig controls the process logger. LogLevel is the only field applied
// on hot reload.
type LogConfig struct {
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,loglevel"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,logformat"`
	// Service is added as a "service" field to every entry when set.
	Service string `json:"service,omitempty" yaml:"service,omitempty"`

	// Rotation of LogFile, ignored when it is empty.
	LogFile       string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MaxLogSizeMB  int    `json:"max_log_size_mb,omitempty" yaml:"max_log_size_mb,omitempty" validate:"min=0"`
	MaxLogBackups int    `json:"max_log_backups,omitempty" yaml:"max_log_backups,omitempty" validate:"min=0"`
	MaxLogAgeDays int    `json:"max_log_age_days,omitempty" yaml:"max_log_age_days,omitempty" validate:"min=0"`
	CompressLogs  bool   `json:"compress_logs,omitempty" yaml:"compress_logs,omitempty"`
}

func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		Service:       DefaultServiceName,
		LogFile:       DefaultLogFile,
		MaxLogSizeMB:  DefaultMaxLogSizeMB,
		MaxLogBackups: DefaultMaxLogBackups,
		MaxLogAgeDays: DefaultMaxLogAgeDays,
	}
}
