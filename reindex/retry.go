package reindex

import (
	"context"
	"time"

	"github.com/zeinalasali/buildquery/ai"
)

// retryWithBackoff runs operation up to maxRetries times with exponential
// backoff starting at baseDelay. Non-retryable provider errors and context
// cancellation stop immediately.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	delay := baseDelay

	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !ai.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
