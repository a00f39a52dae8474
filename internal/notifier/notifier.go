package notifier

import (
	"context"
	"errors"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
)

// LogNotifier writes change and failure events to the log.
type LogNotifier struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(m *metrics.Metrics, logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		metrics: m,
		logger:  logger.With().Str("component", "LogNotifier").Logger(),
	}
}

func (n *LogNotifier) Notify(_ context.Context, site models.MonitoredSite, diff models.DiffResult) error {
	n.logger.Info().
		Str("site_id", site.ID).
		Str("url", site.URL).
		Str("diff_id", diff.ID).
		Float64("change_ratio", diff.ChangeRatio).
		Int("segments", len(diff.Segments)).
		Bool("hash_only", diff.HashOnly).
		Msg("Content change detected")
	n.metrics.ObserveNotification(KindChange, nil)
	return nil
}

func (n *LogNotifier) NotifyFailure(_ context.Context, site models.MonitoredSite, crawlErr error) error {
	n.logger.Warn().
		Err(crawlErr).
		Str("site_id", site.ID).
		Str("url", site.URL).
		Msg("Crawl failed")
	n.metrics.ObserveNotification(KindFailure, nil)
	return nil
}

// MultiNotifier fans events out to every notifier. Delivery continues past
// failures and the errors are joined.
type MultiNotifier []models.Notifier

func (m MultiNotifier) Notify(ctx context.Context, site models.MonitoredSite, diff models.DiffResult) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, site, diff); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyFailure(ctx context.Context, site models.MonitoredSite, crawlErr error) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyFailure(ctx, site, crawlErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewFromConfig picks notifiers from cfg. Without a webhook URL events are
// only logged.
func NewFromConfig(cfg config.NotificationConfig, m *metrics.Metrics, logger zerolog.Logger) (models.Notifier, error) {
	if cfg.WebhookURL == "" {
		logger.Info().Msg("No webhook configured, notifications are logged only")
		return NewLogNotifier(m, logger), nil
	}

	webhook, err := NewWebhookNotifierBuilder(logger).
		WithNotificationConfig(cfg).
		WithMetrics(m).
		Build()
	if err != nil {
		return nil, err
	}
	if !cfg.LogNotifications {
		return webhook, nil
	}
	return MultiNotifier{NewLogNotifier(nil, logger), webhook}, nil
}
