package httpclient

import (
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/rs/zerolog"
)

// HTTPClientBuilder assembles an HTTPClient from defaults, crawler settings
// and per-use overrides applied in call order.
type HTTPClientBuilder struct {
	config       HTTPClientConfig
	retryHandler *RetryHandler
	logger       zerolog.Logger
}

func NewHTTPClientBuilder(logger zerolog.Logger) *HTTPClientBuilder {
	return &HTTPClientBuilder{
		config: DefaultHTTPClientConfig(),
		logger: logger,
	}
}

// WithConfig replaces everything set so far
func (b *HTTPClientBuilder) WithConfig(cfg HTTPClientConfig) *HTTPClientBuilder {
	b.config = cfg
	return b
}

// WithCrawlerConfig applies the crawler section: timeout, redirects, proxy,
// TLS, headers and body limit.
func (b *HTTPClientBuilder) WithCrawlerConfig(cfg config.CrawlerConfig) *HTTPClientBuilder {
	b.config = ConfigFromCrawler(cfg)
	return b
}

func (b *HTTPClientBuilder) WithTimeout(timeout time.Duration) *HTTPClientBuilder {
	b.config.Timeout = timeout
	return b
}

func (b *HTTPClientBuilder) WithUserAgent(userAgent string) *HTTPClientBuilder {
	b.config.UserAgent = userAgent
	return b
}

// WithRedirects follows up to max redirects; 0 returns the redirect
// response itself.
func (b *HTTPClientBuilder) WithRedirects(max int) *HTTPClientBuilder {
	b.config.MaxRedirects = max
	b.config.FollowRedirects = max > 0
	return b
}

// WithHeader adds a header sent with every request
func (b *HTTPClientBuilder) WithHeader(key, value string) *HTTPClientBuilder {
	if b.config.CustomHeaders == nil {
		b.config.CustomHeaders = make(map[string]string)
	}
	b.config.CustomHeaders[key] = value
	return b
}

// WithMaxContentSize limits response bodies in bytes (0 for no limit)
func (b *HTTPClientBuilder) WithMaxContentSize(size int64) *HTTPClientBuilder {
	b.config.MaxContentSize = size
	return b
}

// WithRetryHandler makes Do retry according to handler
func (b *HTTPClientBuilder) WithRetryHandler(handler *RetryHandler) *HTTPClientBuilder {
	b.retryHandler = handler
	return b
}

func (b *HTTPClientBuilder) Build() (*HTTPClient, error) {
	client, err := NewHTTPClient(b.config, b.logger)
	if err != nil {
		return nil, err
	}
	client.retryHandler = b.retryHandler
	return client, nil
}
