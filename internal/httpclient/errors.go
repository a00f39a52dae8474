package httpclient

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted marks a request that still failed after its last retry.
var ErrRetriesExhausted = errors.New("all retry attempts failed")

const statusSnippetLen = 256

// RequestError is a failure before a complete response was received.
// Op is "send" or "read".
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status stayed retryable. Snippet
// holds the start of the body.
type StatusError struct {
	URL        string
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.StatusCode, e.Snippet)
}

func newStatusError(url string, resp *HTTPResponse) *StatusError {
	snippet := resp.Body
	if len(snippet) > statusSnippetLen {
		snippet = snippet[:statusSnippetLen]
	}
	return &StatusError{URL: url, StatusCode: resp.StatusCode, Snippet: string(snippet)}
}

func exhausted(attempts int, err error) error {
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}
