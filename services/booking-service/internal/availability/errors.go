package availability

import (
	"errors"
	"fmt"
)

// ValidationError reports input the resolver refuses to compute with.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// prefixField nests a ValidationError under parent ("windows[0]" + "end_time").
func prefixField(parent string, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	field := parent
	if verr.Field != "" {
		field = parent + "." + verr.Field
	}
	return &ValidationError{Field: field, Message: verr.Message}
}
