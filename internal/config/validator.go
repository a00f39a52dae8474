package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aleister1102/siteguardian/internal/common"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator with the custom rules used by config tags.
func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("codec", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "none", "uncompressed", "snappy", "gzip", "zstd":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})

	return validate
}

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return common.WrapError(err, "configuration validation error")
	}

	var ec common.ErrorCollector
	for _, e := range errs {
		section, field := splitNamespace(trimNamespace(e.Namespace()))
		reason := fmt.Sprintf("rule '%s'", e.Tag())
		if e.Param() != "" {
			reason += fmt.Sprintf(" (expected: %s)", e.Param())
		}
		if e.Value() != nil && e.Value() != "" {
			reason += fmt.Sprintf(", actual: '%v'", e.Value())
		}
		ec.Add(common.NewConfigurationError(section, field, reason))
	}
	return ec.Error()
}

// splitNamespace separates "LogConfig.LogLevel" into section and field.
func splitNamespace(ns string) (string, string) {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[:idx], ns[idx+1:]
	}
	return ns, ""
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
