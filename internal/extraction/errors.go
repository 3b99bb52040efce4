package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFileType is returned when the document title names a different
	// document kind than the channel it arrived on.
	ErrInvalidFileType = errors.New("document kind does not match channel")

	// ErrUnresolvableOrg is returned when no supplier/trading name can be found.
	ErrUnresolvableOrg = errors.New("organisation could not be resolved")

	// ErrMissingDocumentNumber is returned when the document number is empty.
	ErrMissingDocumentNumber = errors.New("document number is missing")

	// ErrNoStrategy is returned when no registered strategy accepts the document.
	ErrNoStrategy = errors.New("no extraction strategy matches document")
)

// ExtractionError wraps errors with the operation and strategy that produced them.
type ExtractionError struct {
	Op       string
	Strategy string
	Err      error
	Details  string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction: %s failed", e.Op)
	if e.Strategy != "" {
		msg += fmt.Sprintf(" (strategy: %s)", e.Strategy)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op, strategy string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	return &ExtractionError{Op: op, Strategy: strategy, Err: err, Details: details}
}

// ValidationError represents a structurally malformed extracted field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
