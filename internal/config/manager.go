package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay coalesces the burst of events editors produce on save.
const DefaultReloadDelay = 2 * time.Second

// ReloadFunc receives every configuration that passed validation after a
// reload. It must not block.
type ReloadFunc func(cfg *GlobalConfig)

// ConfigManager holds the active configuration and reloads it when the
// config file changes. A reloaded file that fails validation is logged and
// the previous configuration stays active.
type ConfigManager struct {
	mu           sync.RWMutex
	config       *GlobalConfig
	configPath   string
	lastModified time.Time
	subscribers  []ReloadFunc

	logger      zerolog.Logger
	reloadDelay time.Duration
	watcher     *fsnotify.Watcher
	stopOnce    sync.Once
	stopChan    chan struct{}
	loopDone    chan struct{}
}

// NewConfigManager loads and validates the configuration found for
// configPath (see GetConfigPath for the search order).
func NewConfigManager(configPath string, logger zerolog.Logger) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath:  GetConfigPath(configPath),
		logger:      logger.With().Str("component", "ConfigManager").Logger(),
		reloadDelay: DefaultReloadDelay,
		stopChan:    make(chan struct{}),
	}
	if cm.configPath == "" && configPath != "" {
		cm.configPath = configPath
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}
	cm.config = cfg
	return cm, nil
}

// GetConfig returns a copy of the active configuration.
func (cm *ConfigManager) GetConfig() *GlobalConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return copyConfig(cm.config)
}

// GetConfigPath returns the file the configuration was loaded from, or ""
// when only defaults and environment overrides apply.
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// OnReload registers fn to run after each successful reload.
func (cm *ConfigManager) OnReload(fn ReloadFunc) {
	cm.mu.Lock()
	cm.subscribers = append(cm.subscribers, fn)
	cm.mu.Unlock()
}

// ReloadConfig reads the config file again. On success the new configuration
// becomes active and subscribers are called with a copy of it.
func (cm *ConfigManager) ReloadConfig() error {
	cfg, err := cm.load()
	if err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = cfg
	subscribers := append([]ReloadFunc(nil), cm.subscribers...)
	cm.mu.Unlock()

	cm.logger.Info().Str("path", cm.configPath).Msg("Configuration reloaded")
	for _, fn := range subscribers {
		fn(copyConfig(cfg))
	}
	return nil
}

// StartHotReload watches the config file and reloads it on change until ctx
// is cancelled or Close is called. It is a no-op without a config file.
func (cm *ConfigManager) StartHotReload(ctx context.Context) error {
	if cm.configPath == "" {
		cm.logger.Debug().Msg("No configuration file in use, hot-reload disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	configDir := filepath.Dir(cm.configPath)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory '%s': %w", configDir, err)
	}

	cm.watcher = watcher
	cm.loopDone = make(chan struct{})
	go cm.hotReloadLoop(ctx)

	cm.logger.Info().Str("path", cm.configPath).Msg("Watching configuration file for changes")
	return nil
}

// Close stops the watcher and waits for the reload loop to exit.
func (cm *ConfigManager) Close() error {
	var err error
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
		if cm.watcher != nil {
			err = cm.watcher.Close()
			<-cm.loopDone
		}
	})
	return err
}

func (cm *ConfigManager) load() (*GlobalConfig, error) {
	cfg, err := LoadGlobalConfig(cm.configPath, cm.logger)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if cm.configPath != "" {
		if stat, err := os.Stat(cm.configPath); err == nil {
			cm.mu.Lock()
			cm.lastModified = stat.ModTime()
			cm.mu.Unlock()
		}
	}
	return cfg, nil
}

func (cm *ConfigManager) modifiedSinceLoad() bool {
	stat, err := os.Stat(cm.configPath)
	if err != nil {
		return false
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return !stat.ModTime().Equal(cm.lastModified)
}

func (cm *ConfigManager) hotReloadLoop(ctx context.Context) {
	defer close(cm.loopDone)

	reloadTimer := time.NewTimer(cm.reloadDelay)
	reloadTimer.Stop()
	defer reloadTimer.Stop()

	target := filepath.Clean(cm.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cm.stopChan:
			return

		case event, ok := <-cm.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cm.logger.Debug().Str("op", event.Op.String()).Msg("Config file change detected")
				reloadTimer.Reset(cm.reloadDelay)
			}

		case err, ok := <-cm.watcher.Errors:
			if !ok {
				return
			}
			cm.logger.Error().Err(err).Msg("File watcher error")

		case <-reloadTimer.C:
			if !cm.modifiedSinceLoad() {
				continue
			}
			if err := cm.ReloadConfig(); err != nil {
				cm.logger.Error().Err(err).Msg("Failed to reload configuration, keeping previous one")
			}
		}
	}
}

// copyConfig deep-copies the slices and maps of src.
func copyConfig(src *GlobalConfig) *GlobalConfig {
	if src == nil {
		return NewDefaultGlobalConfig()
	}
	dst := *src

	dst.CrawlerConfig.CustomHeaders = make(map[string]string, len(src.CrawlerConfig.CustomHeaders))
	for k, v := range src.CrawlerConfig.CustomHeaders {
		dst.CrawlerConfig.CustomHeaders[k] = v
	}
	dst.DiffConfig.IgnoreSelectors = append([]string(nil), src.DiffConfig.IgnoreSelectors...)
	dst.DiffConfig.IgnorePatterns = append([]string(nil), src.DiffConfig.IgnorePatterns...)
	dst.NotificationConfig.MentionRoleIDs = append([]string(nil), src.NotificationConfig.MentionRoleIDs...)
	return &dst
}
