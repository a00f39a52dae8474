package httpclient

import (
	"testing"
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientBuilder(t *testing.T) {
	retry := NewRetryHandler(DefaultRetryHandlerConfig(), zerolog.Nop())
	client, err := NewHTTPClientBuilder(zerolog.Nop()).
		WithTimeout(15 * time.Second).
		WithUserAgent("test-agent").
		WithRedirects(0).
		WithHeader("X-Team", "legal").
		WithRetryHandler(retry).
		Build()

	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, client.config.Timeout)
	assert.Equal(t, "test-agent", client.config.UserAgent)
	assert.False(t, client.config.FollowRedirects)
	assert.Equal(t, 0, client.config.MaxRedirects)
	assert.Equal(t, "legal", client.config.CustomHeaders["X-Team"])
	assert.Same(t, retry, client.retryHandler)
}

func TestHTTPClientBuilder_CrawlerConfigThenOverride(t *testing.T) {
	crawlerCfg := config.NewDefaultCrawlerConfig()
	crawlerCfg.UserAgent = "from-config"
	crawlerCfg.InsecureSkipVerify = true
	crawlerCfg.CustomHeaders = map[string]string{"Accept-Language": "en"}

	client, err := NewHTTPClientBuilder(zerolog.Nop()).
		WithCrawlerConfig(crawlerCfg).
		WithRedirects(3).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "from-config", client.config.UserAgent)
	assert.True(t, client.config.InsecureSkipVerify)
	assert.True(t, client.config.FollowRedirects)
	assert.Equal(t, 3, client.config.MaxRedirects)
	assert.Equal(t, "en", client.config.CustomHeaders["Accept-Language"])
	assert.Equal(t, crawlerCfg.RequestTimeout(), client.config.Timeout)
}

func TestHTTPClientBuilder_DefaultValues(t *testing.T) {
	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	defaults := DefaultHTTPClientConfig()
	assert.Equal(t, defaults.Timeout, client.config.Timeout)
	assert.Equal(t, defaults.UserAgent, client.config.UserAgent)
	assert.Equal(t, defaults.FollowRedirects, client.config.FollowRedirects)
	assert.Equal(t, defaults.MaxRedirects, client.config.MaxRedirects)
	assert.Nil(t, client.retryHandler)
}

func TestHTTPClientBuilder_InvalidProxy(t *testing.T) {
	cfg := DefaultHTTPClientConfig()
	cfg.Proxy = "://bad"
	_, err := NewHTTPClientBuilder(zerolog.Nop()).WithConfig(cfg).Build()
	assert.Error(t, err)
}
