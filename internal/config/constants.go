package config

const (
	// Scheduler Defaults
	DefaultSchedulerTickIntervalSecs = 5
	DefaultSchedulerMaxWorkers       = 8
	DefaultSchedulerMaxAttempts      = 3
	DefaultSchedulerBackoffBaseSecs  = 2
	DefaultSchedulerBackoffMaxSecs   = 30

	// Crawler Defaults
	DefaultCrawlerUserAgent          = "SiteGuardian/1.0 (+https://example.com)"
	DefaultCrawlerRequestTimeoutSecs = 15
	DefaultCrawlerMaxContentSizeMB   = 20
	DefaultCrawlerMaxRedirects       = 10

	// Backup Defaults
	DefaultBackupRoot             = "backups"
	DefaultBackupKeepUncompressed = 2
	DefaultBackupEnforceRetention = true
	DefaultBackupVerifyHashOnRead = true

	// Storage Defaults
	DefaultStorageSQLiteDBPath     = "config/siteguardian.db"
	DefaultStorageExportBasePath   = "exports"
	DefaultStorageCompressionCodec = "zstd"

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultServiceName   = "siteguardian"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3
	DefaultMaxLogAgeDays = 28

	// Diff Defaults
	DefaultDiffNoiseEpsilon  = 0.0
	DefaultDiffNormalizeHTML = true
	DefaultDiffMaxSizeMB     = 5

	// Notification Defaults
	DefaultNotificationTimeoutSecs = 20
	DefaultNotificationMaxRetries  = 2

	// API Defaults
	DefaultAPIListenAddr = "127.0.0.1:8088"

	// Environment variable names
	EnvConfigPath = "SITEGUARDIAN_CONFIG_PATH"
	EnvBackupRoot = "BACKUP_ROOT"
	EnvDBPath     = "DB_PATH"
	EnvLogDir     = "LOG_DIR"
	EnvMaxWorkers = "MAX_WORKERS"
	EnvWebhookURL = "WEBHOOK_URL"
	EnvAPIAddr    = "API_ADDR"
)
