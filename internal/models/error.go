package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a metadata row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCrawlInProgress is returned when a site already has an outstanding job.
	ErrCrawlInProgress = errors.New("crawl already in progress")
	// ErrSiteDisabled is returned when an operation needs an enabled site.
	ErrSiteDisabled = errors.New("site is disabled")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

const (
	FetchTimeout         FetchErrorKind = "timeout"
	FetchConnectionError FetchErrorKind = "connection_error"
	FetchHTTPStatus      FetchErrorKind = "http_status"
)

// FetchError is a failed HTTP fetch.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case FetchTimeout:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetch %s: timeout", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: connection error: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: connection error", e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying could succeed. Client errors are
// permanent except 408 and 429.
func (e *FetchError) Transient() bool {
	if e.Kind != FetchHTTPStatus {
		return true
	}
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// NewHTTPStatusError builds a FetchError for a non-success status.
func NewHTTPStatusError(url string, statusCode int) *FetchError {
	return &FetchError{Kind: FetchHTTPStatus, StatusCode: statusCode, URL: url}
}

// StorageErrorKind classifies backup store failures.
type StorageErrorKind string

const (
	StorageWriteFailed StorageErrorKind = "write_failed"
	StorageNotFound    StorageErrorKind = "not_found"
	// StorageCorrupt means stored bytes no longer match their hash.
	StorageCorrupt StorageErrorKind = "corrupt"
)

// StorageError is a backup store failure. It is fatal for the current crawl
// attempt.
type StorageError struct {
	Kind StorageErrorKind
	Hash string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s for %s: %v", e.Kind, e.Hash, e.Err)
	}
	return fmt.Sprintf("storage %s for %s", e.Kind, e.Hash)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match NotFound storage errors.
func (e *StorageError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == StorageNotFound
}

// DiffErrorKind classifies diff failures.
type DiffErrorKind string

const DiffUnsupportedEncoding DiffErrorKind = "unsupported_encoding"

// DiffError means a textual comparison was not possible. Callers degrade to
// hash comparison.
type DiffError struct {
	Kind   DiffErrorKind
	Detail string
}

func (e *DiffError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("diff %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("diff %s", e.Kind)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient()
	}
	return false
}
