package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aleister1102/siteguardian/internal/api"
	"github.com/aleister1102/siteguardian/internal/backup"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/crawler"
	"github.com/aleister1102/siteguardian/internal/datastore"
	"github.com/aleister1102/siteguardian/internal/differ"
	"github.com/aleister1102/siteguardian/internal/httpclient"
	"github.com/aleister1102/siteguardian/internal/logger"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"
	"github.com/aleister1102/siteguardian/internal/notifier"
	"github.com/aleister1102/siteguardian/internal/rslimiter"
	"github.com/aleister1102/siteguardian/internal/scheduler"
	"github.com/aleister1102/siteguardian/internal/urlhandler"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

// services holds every long-lived component built from the global config.
type services struct {
	store     *datastore.SQLiteStore
	backups   *backup.Store
	metrics   *metrics.Metrics
	limiter   *rslimiter.ResourceLimiter
	scheduler *scheduler.Scheduler
}

func main() {
	fmt.Println("SiteGuardian starting...")

	flags := ParseFlags()

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfgManager, err := config.NewConfigManager(flags.GlobalConfigFile, bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	defer cfgManager.Close()
	gCfg := cfgManager.GetConfig()

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	svc, err := initializeServices(gCfg, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.close(zLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case flags.AddURL != "":
		err = runAdd(ctx, svc, flags, zLogger)
	case flags.ImportFile != "":
		err = runImport(ctx, svc, flags, zLogger)
	case flags.ExportSiteID != "":
		err = runExport(ctx, svc, gCfg.StorageConfig, flags, zLogger)
	case flags.Once:
		err = runOnce(ctx, svc, zLogger)
	default:
		err = runDaemon(ctx, svc, gCfg, cfgManager, zLogger)
	}
	if err != nil {
		zLogger.Error().Err(err).Msg("SiteGuardian exited with error")
		svc.close(zLogger)
		os.Exit(1)
	}
	zLogger.Info().Msg("Application finished.")
}

func initializeServices(gCfg *config.GlobalConfig, zLogger zerolog.Logger) (*services, error) {
	svc := &services{metrics: metrics.New()}

	store, err := datastore.NewSQLiteStore(gCfg.StorageConfig.SQLiteDBPath, zLogger)
	if err != nil {
		return nil, err
	}
	svc.store = store

	backups, err := backup.NewStore(gCfg.BackupConfig, zLogger)
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}
	svc.backups = backups

	engine, err := differ.NewEngine(gCfg.DiffConfig, zLogger)
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}

	fetcher, err := httpclient.NewHTTPClientBuilder(zLogger).WithCrawlerConfig(gCfg.CrawlerConfig).Build()
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}

	crawl, err := crawler.NewCrawlerBuilder(zLogger).
		WithFetcher(fetcher).
		WithBackupStore(backups).
		WithSnapshotStore(store).
		WithDiffer(engine).
		WithMetrics(svc.metrics).
		Build()
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}

	notify, err := notifier.NewFromConfig(gCfg.NotificationConfig, svc.metrics, zLogger)
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}

	svc.limiter = rslimiter.NewResourceLimiter(gCfg.ResourceLimiterConfig, svc.metrics, zLogger)

	builder := scheduler.NewSchedulerBuilder(zLogger).
		WithStore(store).
		WithCrawler(crawl).
		WithNotifier(notify).
		WithGuard(svc.limiter).
		WithMetrics(svc.metrics).
		WithSchedulerConfig(gCfg.SchedulerConfig).
		WithMinChangeRatio(gCfg.NotificationConfig.MinChangeRatio)
	if gCfg.BackupConfig.EnforceRetention {
		builder = builder.WithRetention(backup.NewRetentionPolicy(backups, store, gCfg.BackupConfig.KeepUncompressed, zLogger))
	}
	sched, err := builder.Build()
	if err != nil {
		svc.close(zLogger)
		return nil, err
	}
	svc.scheduler = sched

	return svc, nil
}

func (svc *services) close(zLogger zerolog.Logger) {
	if svc.backups != nil {
		if err := svc.backups.Close(); err != nil {
			zLogger.Error().Err(err).Msg("Failed to close backup store")
		}
		svc.backups = nil
	}
	if svc.store != nil {
		if err := svc.store.Close(); err != nil {
			zLogger.Error().Err(err).Msg("Failed to close metadata store")
		}
		svc.store = nil
	}
}

func runAdd(ctx context.Context, svc *services, flags AppFlags, zLogger zerolog.Logger) error {
	normalized, err := urlhandler.NormalizeURL(flags.AddURL)
	if err != nil {
		return err
	}
	site, err := registerSite(ctx, svc.store, normalized, flags.AddName, flags.Interval)
	if err != nil {
		return err
	}
	zLogger.Info().
		Str("site_id", site.ID).
		Str("url", site.URL).
		Str("schedule", site.Schedule.String()).
		Msg("Site registered")
	fmt.Println(site.ID)
	return nil
}

func runImport(ctx context.Context, svc *services, flags AppFlags, zLogger zerolog.Logger) error {
	urls, err := urlhandler.ReadURLsFromFile(flags.ImportFile, zLogger)
	if err != nil {
		return err
	}

	existing, err := svc.store.ListSites(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, site := range existing {
		known[site.URL] = true
	}

	added := 0
	for _, rawURL := range urls {
		if known[rawURL] {
			zLogger.Debug().Str("url", rawURL).Msg("Site already registered, skipping")
			continue
		}
		site, err := registerSite(ctx, svc.store, rawURL, "", flags.Interval)
		if err != nil {
			zLogger.Warn().Err(err).Str("url", rawURL).Msg("Failed to register site")
			continue
		}
		known[rawURL] = true
		added++
		fmt.Printf("%s\t%s\n", site.ID, site.URL)
	}
	zLogger.Info().Int("added", added).Int("listed", len(urls)).Msg("Import finished")
	return nil
}

func registerSite(ctx context.Context, store models.SiteStore, rawURL, name string, interval time.Duration) (models.MonitoredSite, error) {
	site := models.NewMonitoredSite(rawURL, models.IntervalSchedule(interval))
	site.Name = name
	if err := site.Validate(); err != nil {
		return site, err
	}
	if err := store.CreateSite(ctx, &site); err != nil {
		return site, err
	}
	return site, nil
}

func runExport(ctx context.Context, svc *services, cfg config.StorageConfig, flags AppFlags, zLogger zerolog.Logger) error {
	exporter, err := datastore.NewParquetExporterBuilder(zLogger).
		WithStore(svc.store).
		WithStorageConfig(cfg).
		Build()
	if err != nil {
		return err
	}

	dir := flags.ExportDir
	if dir == "" {
		dir = filepath.Join(cfg.ExportBasePath, flags.ExportSiteID)
	}
	result, err := exporter.Export(ctx, flags.ExportSiteID, dir)
	if err != nil {
		return err
	}
	fmt.Println(result.FilePath)
	return nil
}

func runOnce(ctx context.Context, svc *services, zLogger zerolog.Logger) error {
	zLogger.Info().Msg("Running a single crawl round")
	err := svc.scheduler.RunOnce(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := svc.scheduler.Stop(stopCtx); stopErr != nil {
		zLogger.Warn().Err(stopErr).Msg("Scheduler did not stop cleanly")
	}

	if errors.Is(err, context.Canceled) {
		zLogger.Info().Msg("Crawl round interrupted")
		return nil
	}
	return err
}

func runDaemon(ctx context.Context, svc *services, gCfg *config.GlobalConfig, cfgManager *config.ConfigManager, zLogger zerolog.Logger) error {
	svc.limiter.Start(ctx)
	defer svc.limiter.Stop()

	cfgManager.OnReload(func(newCfg *config.GlobalConfig) {
		applyReloadedConfig(svc, gCfg, newCfg, zLogger)
	})
	if err := cfgManager.StartHotReload(ctx); err != nil {
		zLogger.Warn().Err(err).Msg("Configuration hot-reload unavailable")
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if gCfg.APIConfig.Enabled {
		var err error
		server, err = api.NewServerBuilder(zLogger).
			WithStore(svc.store).
			WithCrawlService(svc.scheduler).
			WithBackupStore(svc.backups).
			WithMetrics(svc.metrics).
			WithAPIConfig(gCfg.APIConfig).
			Build()
		if err != nil {
			return err
		}
		go func() {
			serverErr <- server.ListenAndServe()
		}()
	}

	if err := svc.scheduler.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		zLogger.Info().Msg("Received interrupt signal, initiating graceful shutdown...")
	case runErr = <-serverErr:
		if runErr != nil {
			zLogger.Error().Err(runErr).Msg("Operator API failed, shutting down")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zLogger.Warn().Err(err).Msg("Operator API did not shut down cleanly")
		}
	}
	if err := svc.scheduler.Stop(shutdownCtx); err != nil {
		zLogger.Warn().Err(err).Msg("Running crawls were cancelled at shutdown")
	}
	return runErr
}

// applyReloadedConfig applies the settings that can change at runtime. Other
// sections keep their startup values until restart.
func applyReloadedConfig(svc *services, startup, newCfg *config.GlobalConfig, zLogger zerolog.Logger) {
	if err := logger.SetLevel(newCfg.LogConfig.LogLevel); err != nil {
		zLogger.Warn().Err(err).Msg("Ignoring reloaded log level")
	}
	svc.scheduler.SetMinChangeRatio(newCfg.NotificationConfig.MinChangeRatio)

	if newCfg.SchedulerConfig != startup.SchedulerConfig || newCfg.APIConfig != startup.APIConfig ||
		newCfg.StorageConfig != startup.StorageConfig || newCfg.BackupConfig != startup.BackupConfig {
		zLogger.Warn().Msg("Some changed settings only apply after a restart")
	}
	zLogger.Info().
		Str("log_level", newCfg.LogConfig.LogLevel).
		Float64("min_change_ratio", newCfg.NotificationConfig.MinChangeRatio).
		Msg("Applied reloaded configuration")
}
