package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aleister1102/siteguardian/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// loadDotEnv reads a .env file from the working directory if there is one.
// Variables already present in the environment win.
func loadDotEnv(logger zerolog.Logger) {
	if !common.FileExists(".env") {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn().Err(err).Msg("Failed to load .env file")
		return
	}
	logger.Debug().Msg("Loaded environment from .env")
}

// ApplyEnvOverrides copies the supported environment variables over cfg.
func ApplyEnvOverrides(cfg *GlobalConfig, logger zerolog.Logger) {
	if v := strings.TrimSpace(os.Getenv(EnvBackupRoot)); v != "" {
		cfg.BackupConfig.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.StorageConfig.SQLiteDBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogDir)); v != "" {
		name := filepath.Base(cfg.LogConfig.LogFile)
		if cfg.LogConfig.LogFile == "" {
			name = "siteguardian.log"
		}
		cfg.LogConfig.LogFile = filepath.Join(v, name)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Warn().Str("value", v).Msg("Ignoring invalid MAX_WORKERS")
		} else {
			cfg.SchedulerConfig.MaxWorkers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvWebhookURL)); v != "" {
		cfg.NotificationConfig.WebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIAddr)); v != "" {
		cfg.APIConfig.ListenAddr = v
	}
}
