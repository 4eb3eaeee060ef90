package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one problem found in the configuration.
type ValidationError struct {
	FieldPath string
	Message   string
}

func (e ValidationError) Error() string {
	if e.FieldPath == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.FieldPath, e.Message)
}

// ValidationErrors collects every problem found in one validation run.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "configuration is invalid:\n  - " + strings.Join(msgs, "\n  - ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report field names by their toml tag so messages match the file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateConfig validates the entire configuration and returns all
// validation errors at once.
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	sections := []struct {
		name  string
		value interface{}
	}{
		{"general", c.General},
		{"manifest", c.Manifest},
		{"routing", c.Routing},
		{"backoff", c.Backoff},
		{"api", c.API},
	}

	for _, section := range sections {
		if err := validate.Struct(section.value); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, section.name)...)
		}
	}

	validationErrors = append(validationErrors, c.validateManifestSource()...)
	validationErrors = append(validationErrors, c.validateRanges()...)

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

func (c *Config) validateManifestSource() ValidationErrors {
	var validationErrors ValidationErrors

	hasEndpoint := c.Manifest.Endpoint != ""
	hasFile := c.Manifest.File != ""

	if !hasEndpoint && !hasFile {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "manifest",
			Message:   "must specify either endpoint or file",
		})
	}
	if hasEndpoint && hasFile {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "manifest",
			Message:   "endpoint and file are mutually exclusive",
		})
	}

	return validationErrors
}

func (c *Config) validateRanges() ValidationErrors {
	var validationErrors ValidationErrors

	if c.Backoff.CeilingMs < c.Backoff.BaseMs {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "backoff.ceiling_ms",
			Message:   fmt.Sprintf("ceiling (%d) must not be below base (%d)", c.Backoff.CeilingMs, c.Backoff.BaseMs),
		})
	}

	// The rule range is exactly as wide as the table range; both must fit
	// in the kernel's 32-bit id space without wrapping.
	if c.Routing.TableBase+c.Routing.TableSpan > 1<<31 {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "routing.table_base",
			Message:   "table range exceeds the valid table id space",
		})
	}

	return validationErrors
}

// convertValidatorErrors converts go-playground/validator errors to our
// ValidationError format.
func convertValidatorErrors(err error, fieldPrefix string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				fieldPath = fieldPrefix + "." + e.Field()
			}

			validationErrors = append(validationErrors, ValidationError{
				FieldPath: fieldPath,
				Message:   fmt.Sprintf("failed validation: %s", e.Tag()),
			})
		}
	}

	return validationErrors
}
