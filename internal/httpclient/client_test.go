package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-value", r.Header.Get("X-Test-Header"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithUserAgent("test-agent").Build()
	require.NoError(t, err)

	resp, err := client.Do(&HTTPRequest{
		URL:     server.URL,
		Method:  http.MethodGet,
		Headers: map[string]string{"X-Test-Header": "test-value"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestHTTPClient_Do_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"key":"value"}`, string(body))
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	resp, err := client.Do(&HTTPRequest{
		URL:     server.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    bytes.NewReader([]byte(`{"key":"value"}`)),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"received":true}`, string(resp.Body))
}

func TestHTTPClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer ts.Close()

	logger := zerolog.Nop()
	req := &HTTPRequest{URL: ts.URL + "/redirect", Method: http.MethodGet}

	clientFollow, err := NewHTTPClientBuilder(logger).WithRedirects(5).Build()
	require.NoError(t, err)
	resp, err := clientFollow.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))

	clientNoFollow, err := NewHTTPClientBuilder(logger).WithRedirects(0).Build()
	require.NoError(t, err)
	resp, err = clientNoFollow.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestHTTPClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/page", http.StatusMovedPermanently)
			return
		}
		assert.Equal(t, "site-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<p>hello</p>"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	result, err := client.Fetch(context.Background(), server.URL+"/old", models.FetchOptions{
		Headers:   map[string]string{"X-Token": "secret"},
		UserAgent: "site-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "<p>hello</p>", string(result.Body))
	assert.Equal(t, "text/html; charset=utf-8", result.ContentType)
	assert.Equal(t, server.URL+"/page", result.FinalURL)
	assert.False(t, result.Truncated)
}

func TestHTTPClient_Fetch_DefaultUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, config.DefaultCrawlerUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("plain body"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	result, err := client.Fetch(context.Background(), server.URL, models.FetchOptions{})
	require.NoError(t, err)
	assert.Contains(t, result.ContentType, "text/plain", "content type is sniffed when missing")
}

func TestHTTPClient_Fetch_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
			require.NoError(t, err)

			_, err = client.Fetch(context.Background(), server.URL, models.FetchOptions{})
			var fetchErr *models.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, models.FetchHTTPStatus, fetchErr.Kind)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, tt.transient, models.IsTransient(err))
		})
	}
}

func TestHTTPClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), server.URL, models.FetchOptions{
		Timeout: models.Duration(50 * time.Millisecond),
	})
	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, models.FetchTimeout, fetchErr.Kind)
	assert.True(t, fetchErr.Transient())
}

func TestHTTPClient_Fetch_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), url, models.FetchOptions{})
	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, models.FetchConnectionError, fetchErr.Kind)
	assert.True(t, models.IsTransient(err))
}

func TestHTTPClient_Fetch_MaxSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is some very long content"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithMaxContentSize(10).Build()
	require.NoError(t, err)

	result, err := client.Fetch(context.Background(), server.URL, models.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "this is so", string(result.Body))
	assert.True(t, result.Truncated)
}

func TestConfigFromCrawler(t *testing.T) {
	crawlerCfg := config.NewDefaultCrawlerConfig()
	crawlerCfg.RequestTimeoutSecs = 7
	crawlerCfg.MaxRedirects = 0
	crawlerCfg.CustomHeaders = map[string]string{"X-Env": "test"}

	cfg := ConfigFromCrawler(crawlerCfg)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
	assert.False(t, cfg.FollowRedirects)
	assert.Equal(t, "test", cfg.CustomHeaders["X-Env"])
	assert.Equal(t, int64(20*1024*1024), cfg.MaxContentSize)
}
