package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidConfiguration is matched by every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// WrapError prefixes err with message. A nil err stays nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf is WrapError with a formatted message.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return WrapError(err, fmt.Sprintf(format, args...))
}

// ValidationError rejects a single input field, typically from a builder or
// an API request.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ConfigurationError points at the config section and field that failed
// validation. Both may be empty.
type ConfigurationError struct {
	Section string
	Field   string
	Reason  string
}

func NewConfigurationError(section, field, reason string) *ConfigurationError {
	return &ConfigurationError{Section: section, Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	var where strings.Builder
	if e.Section != "" {
		fmt.Fprintf(&where, " in section '%s'", e.Section)
		if e.Field != "" {
			fmt.Fprintf(&where, ", field '%s'", e.Field)
		}
	}
	return fmt.Sprintf("configuration error%s: %s", where.String(), e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// ErrorCollector gathers the failures of a multi-step operation that should
// not stop at the first one. The zero value is ready to use.
type ErrorCollector struct {
	errs []error
}

// Add records err unless it is nil.
func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.errs = append(ec.errs, err)
	}
}

// Addf records err prefixed with a formatted context.
func (ec *ErrorCollector) Addf(err error, format string, args ...interface{}) {
	ec.Add(WrapErrorf(err, format, args...))
}

// Len is the number of recorded errors.
func (ec *ErrorCollector) Len() int {
	return len(ec.errs)
}

// Error returns nil, the only error, or one error wrapping all of them.
func (ec *ErrorCollector) Error() error {
	switch len(ec.errs) {
	case 0:
		return nil
	case 1:
		return ec.errs[0]
	}
	return &multiError{errs: append([]error(nil), ec.errs...)}
}

type multiError struct {
	errs []error
}

func (m *multiError) Error() string {
	msgs := make([]string, len(m.errs))
	for i, err := range m.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("multiple errors occurred: [%s]", strings.Join(msgs, "; "))
}

func (m *multiError) Unwrap() []error { return m.errs }
