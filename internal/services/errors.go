package services

import (
	"errors"
	"fmt"
)

// Validation rejection reasons, checked in order by the override validator.
const (
	ReasonUnknownKey          = "unknown_key"
	ReasonConstraintViolation = "constraint_violation"
	ReasonOverridesDisabled   = "overrides_disabled"
	ReasonCategoryNotAllowed  = "category_not_allowed"
	ReasonLimitExceeded       = "limit_exceeded"
)

// ErrUnknownKey is returned when a preference key has no catalog entry.
// Fatal to the caller: there is nothing to resolve or override.
var ErrUnknownKey = errors.New("unknown preference key")

// ErrEmptySource is returned when a template snapshot matches zero
// preferences. Empty templates are rejected rather than created.
var ErrEmptySource = errors.New("no preferences match the template source filter")

// ValidationError is a typed override rejection. Reason is one of the
// Reason* constants; Details carries the constraint message when present.
type ValidationError struct {
	Reason  string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Details)
}

func newValidationError(reason, details string) *ValidationError {
	return &ValidationError{Reason: reason, Details: details}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
