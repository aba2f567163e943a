package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/zeinalasali/buildquery/ai"
)

// classifyErr maps transport and API errors onto the provider failure
// taxonomy. The OpenAI-compatible clients surface HTTP status codes inside
// error strings, so classification falls back to string matching; unknown
// errors count as unavailable, which is the retryable side.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, err)
	}

	msg := err.Error()

	// Rate limiting and server errors are transient.
	for _, code := range []string{"429", "500", "502", "503", "504", "Too Many Requests"} {
		if strings.Contains(msg, code) {
			return fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, err)
		}
	}

	// Remaining client errors mean the input itself was refused.
	for _, code := range []string{"400", "401", "403", "404", "413", "422"} {
		if strings.Contains(msg, code) {
			return fmt.Errorf("%w: %w", ai.ErrProviderRejected, err)
		}
	}

	return fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, err)
}
