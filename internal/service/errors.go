package service

import (
	"errors"
	"strings"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotReady   = errors.New("job not completed")
	ErrJobTerminal   = errors.New("job already finished")
	ErrValidation    = errors.New("validation failed")
	ErrKindMismatch  = errors.New("asset type does not match object media kind")
	ErrNotConfirmed  = errors.New("deletion requires confirmation")
	ErrNotConfigured = errors.New("service not configured")
)

// ValidationError describes a rejected request. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, field+"="+tag)
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
