package services

import (
	"errors"
	"fmt"
)

// GenerationFailedMessage is what the user sees for any failed turn.
const GenerationFailedMessage = "Failed to generate response. Please check your context fields."

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")

type GenerationErrorKind string

const (
	KindCredentials GenerationErrorKind = "credentials"
	KindTransport   GenerationErrorKind = "transport"
	KindMalformed   GenerationErrorKind = "malformed"
)

// GenerationError collapses every generation failure into one user-facing
// message while keeping the kind and cause for logs.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string { return GenerationFailedMessage }

func (e *GenerationError) Unwrap() error { return e.Err }

// Detail is the log form of the error.
func (e *GenerationError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

type UnavailableError struct{ Message string }

func (e *UnavailableError) Error() string { return e.Message }
