// Package validator checks request DTOs against their `validate` struct
// tags and reports failures as ErrValidation with per-field details.
package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Get returns the shared validator instance.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRequest validates req. Field failures are attached as reportable
// details keyed by field name.
func ValidateRequest(req any) error {
	if err := Get().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
