package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their koanf key, so a failure names the
// same path an operator would set in YAML or through APP_* variables.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(validateRetry, RetryConfig{})
	v.RegisterStructValidation(validateSync, SyncConfig{})

	return v
}

// Validate rejects a configuration the service cannot start with. Every
// failing key is reported at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, errors.New(describe(fe)))
	}

	return fmt.Errorf("config validation failed: %w", errors.Join(problems...))
}

// validateRetry keeps backoff bounded from below by its starting interval.
func validateRetry(sl validator.StructLevel) {
	r, _ := sl.Current().Interface().(RetryConfig)
	if r.MaxInterval > 0 && r.MaxInterval < r.InitialInterval {
		sl.ReportError(r.MaxInterval, "max_interval", "MaxInterval", "gtefield", "initial_interval")
	}
}

// validateSync refuses a per-run timeout that would let runs overlap.
func validateSync(sl validator.StructLevel) {
	s, _ := sl.Current().Interface().(SyncConfig)
	if s.Timeout > 0 && s.Interval > 0 && s.Timeout > s.Interval {
		sl.ReportError(s.Timeout, "timeout", "Timeout", "ltefield", "interval")
	}
}

func describe(fe validator.FieldError) string {
	key := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", key, fmt.Sprint(fe.Value()))
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", key, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s fails %q", key, fe.Tag())
	}
}

// keyPath drops the root type from a validator namespace:
// "Config.sync.batch_size" becomes "sync.batch_size".
func keyPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
