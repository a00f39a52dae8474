package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 10 * 1024 * 1024

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	APIConfig             APIConfig             `json:"api_config,omitempty" yaml:"api_config,omitempty"`
	BackupConfig          BackupConfig          `json:"backup_config,omitempty" yaml:"backup_config,omitempty"`
	CrawlerConfig         CrawlerConfig         `json:"crawler_config,omitempty" yaml:"crawler_config,omitempty"`
	DiffConfig            DiffConfig            `json:"diff_config,omitempty" yaml:"diff_config,omitempty"`
	LogConfig             LogConfig             `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	NotificationConfig    NotificationConfig    `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	ResourceLimiterConfig ResourceLimiterConfig `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`
	SchedulerConfig       SchedulerConfig       `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	StorageConfig         StorageConfig         `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		APIConfig:             NewDefaultAPIConfig(),
		BackupConfig:          NewDefaultBackupConfig(),
		CrawlerConfig:         NewDefaultCrawlerConfig(),
		DiffConfig:            NewDefaultDiffConfig(),
		LogConfig:             NewDefaultLogConfig(),
		NotificationConfig:    NewDefaultNotificationConfig(),
		ResourceLimiterConfig: NewDefaultResourceLimiterConfig(),
		SchedulerConfig:       NewDefaultSchedulerConfig(),
		StorageConfig:         NewDefaultStorageConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// It determines the config file path using GetConfigPath, supports both JSON and YAML formats,
// then applies environment overrides (including a .env file when present).
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	loadDotEnv(logger)

	filePath := GetConfigPath(providedPath)
	if filePath == "" && providedPath != "" {
		return nil, common.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	if filePath != "" {
		data, err := loadConfigFileContent(filePath)
		if err != nil {
			return nil, common.WrapError(err, "failed to load config file content")
		}

		if err := parseConfigContent(data, filePath, cfg); err != nil {
			return nil, common.WrapError(err, "failed to parse config content")
		}
		logger.Debug().Str("path", filePath).Msg("Configuration file loaded")
	}

	ApplyEnvOverrides(cfg, logger)
	return cfg, nil
}

// loadConfigFileContent reads the config file with a size guard
func loadConfigFileContent(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, common.NewValidationError("config_file", filePath, "config file is too large")
	}
	return os.ReadFile(filePath)
}

// parseConfigContent decodes data over cfg, so absent keys keep their
// defaults. Unknown keys are rejected to surface typos in section names.
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return common.WrapErrorf(err, "failed to unmarshal YAML from '%s'", filePath)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return common.WrapErrorf(err, "failed to unmarshal JSON from '%s'", filePath)
		}
	}
	return nil
}
