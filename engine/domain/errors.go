package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrQuestionTooShort = errors.New("question too short")
	ErrQuestionTooLong  = errors.New("question too long")
	ErrEmptyEmbedding   = errors.New("empty query embedding")
	ErrNegativeK        = errors.New("negative result count")
	ErrUnknownIntent    = errors.New("unknown intent")
	ErrInvalidDocument  = errors.New("invalid document")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
