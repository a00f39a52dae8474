package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aleister1102/siteguardian/internal/models"
)

// FetchResult is a successful page fetch.
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    string
	Truncated   bool
	Duration    time.Duration
}

// Fetch GETs a monitored page once. Failures are returned as
// *models.FetchError so callers can tell transient from permanent ones.
// Fetch never retries.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string, opts models.FetchOptions) (*FetchResult, error) {
	start := time.Now()
	timeout := c.requestTimeout(opts.Timeout.Std())
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchConnectionError, URL: rawURL, Err: err}
	}
	c.applyHeaders(req, opts.Headers, opts.UserAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Debug().Str("url", rawURL).Int("status_code", resp.StatusCode).Msg("Received error status")
		return nil, models.NewHTTPStatusError(rawURL, resp.StatusCode)
	}

	body, truncated, err := c.readBody(resp.Body)
	if err != nil {
		return nil, classifyFetchError(ctx, rawURL, err)
	}
	if truncated {
		c.logger.Warn().
			Str("url", rawURL).
			Int64("max_content_size", c.config.MaxContentSize).
			Msg("Content size exceeds limit, truncating")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = http.DetectContentType(body)
	}

	result := &FetchResult{
		Body:        body,
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		Truncated:   truncated,
		Duration:    time.Since(start),
	}
	c.logger.Debug().
		Str("url", rawURL).
		Int("status_code", result.StatusCode).
		Int("content_size", len(body)).
		Dur("duration", result.Duration).
		Msg("Fetched page")
	return result, nil
}

func classifyFetchError(ctx context.Context, rawURL string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &models.FetchError{Kind: models.FetchTimeout, URL: rawURL, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &models.FetchError{Kind: models.FetchTimeout, URL: rawURL, Err: err}
	}
	return &models.FetchError{Kind: models.FetchConnectionError, URL: rawURL, Err: err}
}
