package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"listingshots/internal/domain"
)

// StatusClientClosed is reported for requests aborted before the provider answered.
const StatusClientClosed = 499

// ProviderError is returned by provider adapters for failed calls. Status is
// zero when no HTTP response was received.
type ProviderError struct {
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

// Unwrap exposes the cause and domain.ErrProviderFailure.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrProviderFailure}
	}
	return []error{e.Err, domain.ErrProviderFailure}
}

// GenerationError is the classified failure of one generation call.
type GenerationError struct {
	Status    int
	Message   string
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

var transientPhrases = []string{
	"overloaded",
	"timeout",
	"deadline exceeded",
	"try again",
	"service unavailable",
	"internal error",
}

// Classify converts any error into a *GenerationError, deciding whether it is
// worth retrying. Errors that are already classified are returned unchanged.
func Classify(err error) *GenerationError {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	status := 0
	message := err.Error()
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		status = provErr.Status
		if strings.TrimSpace(provErr.Message) != "" {
			message = provErr.Message
		}
	}
	return &GenerationError{
		Status:    status,
		Message:   message,
		Retryable: isRetryable(err, status, message),
		Err:       err,
	}
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

func isRetryable(err error, status int, message string) bool {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests || status == StatusClientClosed {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(message)
	if strings.Contains(msg, "cancel") || strings.Contains(msg, "abort") {
		return true
	}
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// permanent marks err as non-retryable regardless of its text.
func permanent(err error) *GenerationError {
	return &GenerationError{Message: err.Error(), Retryable: false, Err: err}
}

// ExhaustedError is returned once the cascade has no model left to try.
type ExhaustedError struct {
	Err          error
	Model        string
	SystemPrompt string
	Attempts     []Attempt
}

func (e *ExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// FallbackSignal is returned in single-attempt mode when the current model
// failed. NextModel is empty when no model is left.
type FallbackSignal struct {
	Err          error
	FailedModel  string
	NextModel    string
	SystemPrompt string
	Retryable    bool
}

func (s *FallbackSignal) Error() string {
	return s.Err.Error()
}

func (s *FallbackSignal) Unwrap() error {
	return s.Err
}
