package config

import "time"

// CrawlerConfig defines configuration for fetching monitored pages
type CrawlerConfig struct {
	UserAgent          string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty" validate:"required"`
	RequestTimeoutSecs int               `json:"request_timeout_secs,omitempty" yaml:"request_timeout_secs,omitempty" validate:"min=1"`
	MaxContentSizeMB   int               `json:"max_content_size_mb,omitempty" yaml:"max_content_size_mb,omitempty" validate:"min=0"`
	MaxRedirects       int               `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"min=0"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	EnableHTTP2        bool              `json:"enable_http2" yaml:"enable_http2"`
	Proxy              string            `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	CustomHeaders      map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
}

// NewDefaultCrawlerConfig creates default crawler configuration
func NewDefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		UserAgent:          DefaultCrawlerUserAgent,
		RequestTimeoutSecs: DefaultCrawlerRequestTimeoutSecs,
		MaxContentSizeMB:   DefaultCrawlerMaxContentSizeMB,
		MaxRedirects:       DefaultCrawlerMaxRedirects,
		EnableHTTP2:        true,
		CustomHeaders:      map[string]string{},
	}
}

// RequestTimeout returns the default per-request timeout
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// MaxContentSize returns the body size limit in bytes, 0 meaning unlimited
func (c CrawlerConfig) MaxContentSize() int64 {
	return int64(c.MaxContentSizeMB) * 1024 * 1024
}
