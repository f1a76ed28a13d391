// ABOUTME: Validation of settings snapshots using go-playground/validator tags
// ABOUTME: Used by the API and CLI to reject bad candidates before they reach the store

package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// settingsValidate is shared; validator caches struct metadata per type.
var settingsValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures by JSON name so paths match the API and CLI.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError describes one failing field by its JSON path.
type FieldError struct {
	Path string `json:"path"`
	Rule string `json:"rule"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Path + " (" + f.Rule + ")"
	}
	return "invalid settings: " + strings.Join(parts, ", ")
}

// Validate checks enum values and ranges. A nil return means the snapshot is
// safe to commit.
func (s Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating settings: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Path: jsonPath(fe.Namespace()),
			Rule: fe.Tag(),
		})
	}
	return out
}

// jsonPath drops the root type name: "Settings.experiment.numRuns" -> "experiment.numRuns".
func jsonPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}
