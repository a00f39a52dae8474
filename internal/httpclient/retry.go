package httpclient

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryHandlerConfig controls which responses are retried and how long to
// wait in between. MaxRetries counts retries, not attempts.
type RetryHandlerConfig struct {
	MaxRetries       int           `json:"max_retries"`
	BaseDelay        time.Duration `json:"base_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	EnableJitter     bool          `json:"enable_jitter"`
	RetryStatusCodes []int         `json:"retry_status_codes"`
}

// DefaultRetryHandlerConfig retries rate limiting and server errors
func DefaultRetryHandlerConfig() RetryHandlerConfig {
	return RetryHandlerConfig{
		MaxRetries:       2,
		BaseDelay:        time.Second,
		MaxDelay:         10 * time.Second,
		EnableJitter:     true,
		RetryStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// RetryHandler re-sends failed requests with exponential backoff. A
// Retry-After header in seconds raises the delay, bounded by MaxDelay.
type RetryHandler struct {
	cfg       RetryHandlerConfig
	retryable map[int]bool
	logger    zerolog.Logger
}

func NewRetryHandler(cfg RetryHandlerConfig, logger zerolog.Logger) *RetryHandler {
	retryable := make(map[int]bool, len(cfg.RetryStatusCodes))
	for _, code := range cfg.RetryStatusCodes {
		retryable[code] = true
	}
	return &RetryHandler{
		cfg:       cfg,
		retryable: retryable,
		logger:    logger.With().Str("component", "RetryHandler").Logger(),
	}
}

// CalculateDelay returns BaseDelay * 2^attempt capped at MaxDelay, plus up
// to 10% jitter when enabled.
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	delay := rh.cfg.BaseDelay
	for i := 0; i < attempt && !rh.atCap(delay); i++ {
		delay *= 2
	}
	if rh.atCap(delay) {
		delay = rh.cfg.MaxDelay
	}
	if rh.cfg.EnableJitter && delay >= 10*time.Millisecond {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}
	return delay
}

func (rh *RetryHandler) atCap(d time.Duration) bool {
	return rh.cfg.MaxDelay > 0 && d >= rh.cfg.MaxDelay
}

// retryAfter reads a Retry-After header given in seconds. HTTP dates are
// ignored.
func (rh *RetryHandler) retryAfter(resp *HTTPResponse) time.Duration {
	var raw string
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "Retry-After") {
			raw = v
			break
		}
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if rh.cfg.MaxDelay > 0 && d > rh.cfg.MaxDelay {
		d = rh.cfg.MaxDelay
	}
	return d
}

func (rh *RetryHandler) sleep(ctx context.Context, delay time.Duration, attempt int, reason, url string) error {
	rh.logger.Warn().
		Str("url", url).
		Str("reason", reason).
		Int("attempt", attempt+1).
		Int("max_retries", rh.cfg.MaxRetries).
		Dur("delay", delay).
		Msg("Request failed, waiting before retry")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DoWithRetry runs doFunc until it succeeds with a non-retryable status or
// the retries are used up. The final retryable response is returned along
// with an error matching ErrRetriesExhausted.
func (rh *RetryHandler) DoWithRetry(ctx context.Context, doFunc func(*HTTPRequest) (*HTTPResponse, error), req *HTTPRequest) (*HTTPResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := doFunc(req)
		if err == nil && !rh.retryable[resp.StatusCode] {
			return resp, nil
		}

		if attempt >= rh.cfg.MaxRetries {
			if err != nil {
				return nil, exhausted(attempt+1, err)
			}
			return resp, exhausted(attempt+1, newStatusError(req.URL, resp))
		}

		delay := rh.CalculateDelay(attempt)
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = "status " + strconv.Itoa(resp.StatusCode)
			if ra := rh.retryAfter(resp); ra > delay {
				delay = ra
			}
		}
		if werr := rh.sleep(ctx, delay, attempt, reason, req.URL); werr != nil {
			return nil, werr
		}
	}
}
