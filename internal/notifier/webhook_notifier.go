package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/httpclient"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
)

const maxResponseBodyInError = 512

// WebhookNotifier posts change and failure events to a Discord-compatible webhook.
type WebhookNotifier struct {
	client          *httpclient.HTTPClient
	webhookURL      string
	roleIDs         []string
	notifyOnFailure bool
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// Notify sends a change notification.
func (n *WebhookNotifier) Notify(ctx context.Context, site models.MonitoredSite, diff models.DiffResult) error {
	payload := FormatChangeMessage(site, diff, n.roleIDs, time.Now())
	err := n.send(ctx, payload)
	n.metrics.ObserveNotification(KindChange, err)
	if err != nil {
		return err
	}
	n.logger.Info().Str("site_id", site.ID).Float64("change_ratio", diff.ChangeRatio).Msg("Change notification sent")
	return nil
}

// NotifyFailure sends a terminal failure notification unless disabled.
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, site models.MonitoredSite, crawlErr error) error {
	if !n.notifyOnFailure {
		n.logger.Debug().Str("site_id", site.ID).Msg("Failure notifications disabled, skipping")
		return nil
	}
	payload := FormatFailureMessage(site, crawlErr, n.roleIDs, time.Now())
	err := n.send(ctx, payload)
	n.metrics.ObserveNotification(KindFailure, err)
	if err != nil {
		return err
	}
	n.logger.Info().Str("site_id", site.ID).Msg("Failure notification sent")
	return nil
}

func (n *WebhookNotifier) send(ctx context.Context, payload models.DiscordMessagePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return common.WrapError(err, "failed to marshal webhook payload")
	}

	resp, err := n.client.Do(&httpclient.HTTPRequest{
		URL:     n.webhookURL,
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    bytes.NewReader(body),
		Context: ctx,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to deliver webhook notification")
		return common.WrapError(err, "failed to send webhook notification")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody := truncateString(string(resp.Body), maxResponseBodyInError)
		n.logger.Error().Int("status_code", resp.StatusCode).Str("response_body", respBody).Msg("Webhook notification rejected")
		return fmt.Errorf("webhook notification failed with status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// WebhookNotifierBuilder provides a fluent interface for creating WebhookNotifier
type WebhookNotifierBuilder struct {
	cfg         config.NotificationConfig
	retryConfig httpclient.RetryHandlerConfig
	client      *httpclient.HTTPClient
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewWebhookNotifierBuilder creates a new WebhookNotifierBuilder
func NewWebhookNotifierBuilder(logger zerolog.Logger) *WebhookNotifierBuilder {
	return &WebhookNotifierBuilder{
		cfg:         config.NewDefaultNotificationConfig(),
		retryConfig: httpclient.DefaultRetryHandlerConfig(),
		logger:      logger.With().Str("component", "WebhookNotifier").Logger(),
	}
}

// WithNotificationConfig sets webhook URL, mentions, timeout and retries
func (b *WebhookNotifierBuilder) WithNotificationConfig(cfg config.NotificationConfig) *WebhookNotifierBuilder {
	b.cfg = cfg
	b.retryConfig.MaxRetries = cfg.MaxRetries
	return b
}

// WithRetryConfig overrides the delivery retry policy
func (b *WebhookNotifierBuilder) WithRetryConfig(cfg httpclient.RetryHandlerConfig) *WebhookNotifierBuilder {
	b.retryConfig = cfg
	return b
}

// WithHTTPClient uses client as is instead of building one
func (b *WebhookNotifierBuilder) WithHTTPClient(client *httpclient.HTTPClient) *WebhookNotifierBuilder {
	b.client = client
	return b
}

// WithMetrics sets the metrics sink
func (b *WebhookNotifierBuilder) WithMetrics(m *metrics.Metrics) *WebhookNotifierBuilder {
	b.metrics = m
	return b
}

// Build creates a new WebhookNotifier instance
func (b *WebhookNotifierBuilder) Build() (*WebhookNotifier, error) {
	if b.cfg.WebhookURL == "" {
		return nil, common.NewValidationError("webhook_url", "", "webhook URL is required")
	}
	if _, err := url.ParseRequestURI(b.cfg.WebhookURL); err != nil {
		return nil, common.NewValidationError("webhook_url", b.cfg.WebhookURL, "invalid webhook URL")
	}

	client := b.client
	if client == nil {
		timeout := time.Duration(b.cfg.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = time.Duration(config.DefaultNotificationTimeoutSecs) * time.Second
		}
		var err error
		client, err = httpclient.NewHTTPClientBuilder(b.logger).
			WithTimeout(timeout).
			WithRetryHandler(httpclient.NewRetryHandler(b.retryConfig, b.logger)).
			Build()
		if err != nil {
			return nil, common.WrapError(err, "failed to create webhook HTTP client")
		}
	}

	return &WebhookNotifier{
		client:          client,
		webhookURL:      b.cfg.WebhookURL,
		roleIDs:         append([]string(nil), b.cfg.MentionRoleIDs...),
		notifyOnFailure: b.cfg.NotifyOnFailure,
		metrics:         b.metrics,
		logger:          b.logger,
	}, nil
}
