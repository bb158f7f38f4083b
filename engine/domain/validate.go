package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	minQuestionLength = 3
	maxQuestionLength = 1000
)

// ValidateQuestion checks an incoming question before it enters the
// retrieval pipeline.
func ValidateQuestion(q Question) error {
	text := strings.TrimSpace(q.Text)

	n := utf8.RuneCountInString(text)
	if n < minQuestionLength {
		return NewValidationError("text", text, ErrQuestionTooShort)
	}
	if n > maxQuestionLength {
		return NewValidationError("text", text[:80], ErrQuestionTooLong)
	}
	return nil
}

// ValidateDocument checks a document record before it is registered in the
// catalog.
func ValidateDocument(d Document) error {
	if strings.TrimSpace(d.Name) == "" {
		return NewValidationError("name", d.Name, ErrInvalidDocument)
	}
	if strings.TrimSpace(d.ID) == "" {
		return NewValidationError("id", d.ID, ErrInvalidDocument)
	}
	return nil
}
