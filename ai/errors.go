package ai

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable indicates a transient provider failure
	// (network error, timeout, 5xx, rate limit). Safe to retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected indicates the provider refused the input (4xx).
	// Permanent for that input; never retried.
	ErrProviderRejected = errors.New("provider rejected input")

	// ErrInvalidMaxAttempts is returned when a retry budget of zero or less is configured.
	ErrInvalidMaxAttempts = errors.New("MaxAttempts must be greater than 0")
)

// IsRetryable reports whether a provider error is worth retrying.
// Rejected input and caller cancellation are terminal; everything else is
// treated as transient, which is the conservative choice for LLM calls.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrProviderRejected) {
		return false
	}
	return true
}
