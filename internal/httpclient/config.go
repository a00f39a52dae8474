package httpclient

import (
	"context"
	"io"
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
)

// HTTPClientConfig holds transport and request settings
type HTTPClientConfig struct {
	Timeout             time.Duration     // Default request timeout
	InsecureSkipVerify  bool              // Skip TLS verification
	FollowRedirects     bool              // Whether to follow redirects
	MaxRedirects        int               // Maximum number of redirects to follow
	Proxy               string            // Proxy URL
	CustomHeaders       map[string]string // Headers added to every request
	UserAgent           string            // Default User-Agent header
	MaxContentSize      int64             // Body limit in bytes, 0 for no limit
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	EnableHTTP2         bool
}

// DefaultHTTPClientConfig returns the default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             time.Duration(config.DefaultCrawlerRequestTimeoutSecs) * time.Second,
		FollowRedirects:     true,
		MaxRedirects:        config.DefaultCrawlerMaxRedirects,
		UserAgent:           config.DefaultCrawlerUserAgent,
		CustomHeaders:       map[string]string{},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		EnableHTTP2:         true,
	}
}

// ConfigFromCrawler maps crawler settings onto a client configuration
func ConfigFromCrawler(cfg config.CrawlerConfig) HTTPClientConfig {
	c := DefaultHTTPClientConfig()
	c.Timeout = cfg.RequestTimeout()
	c.InsecureSkipVerify = cfg.InsecureSkipVerify
	c.MaxRedirects = cfg.MaxRedirects
	c.FollowRedirects = cfg.MaxRedirects > 0
	c.Proxy = cfg.Proxy
	c.UserAgent = cfg.UserAgent
	c.MaxContentSize = cfg.MaxContentSize()
	c.EnableHTTP2 = cfg.EnableHTTP2
	for k, v := range cfg.CustomHeaders {
		c.CustomHeaders[k] = v
	}
	return c
}

// HTTPRequest represents an HTTP request
type HTTPRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    io.Reader
	Context context.Context
}

// HTTPResponse represents an HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
