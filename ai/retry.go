package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first (must be > 0)
	BaseDelay   time.Duration // Initial delay between attempts (doubles each retry)
	MaxDelay    time.Duration // Cap on the exponential backoff delay
	Timeout     time.Duration // Per-attempt deadline
}

// DefaultRetryConfig returns a sensible default configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// RetryEmbedder wraps an Embedder with per-attempt timeouts and exponential
// backoff. Rejected input is surfaced immediately without retrying.
type RetryEmbedder struct {
	inner  Embedder
	config *RetryConfig
	logger *slog.Logger
}

// NewRetryEmbedder wraps an existing embedder with retry logic.
func NewRetryEmbedder(inner Embedder, config *RetryConfig) *RetryEmbedder {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryEmbedder{
		inner:  inner,
		config: config,
		logger: slog.Default().With("component", "retry-embedder"),
	}
}

// EmbedText generates an embedding with timeout and retry logic.
func (r *RetryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, r.config, r.logger, func(attemptCtx context.Context) error {
		var err error
		vec, err = r.inner.EmbedText(attemptCtx, text)
		return err
	})
	return vec, err
}

// EmbedTexts generates batch embeddings with timeout and retry logic.
func (r *RetryEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := withRetry(ctx, r.config, r.logger, func(attemptCtx context.Context) error {
		var err error
		vecs, err = r.inner.EmbedTexts(attemptCtx, texts)
		return err
	})
	return vecs, err
}

// RetryCompleter wraps a Completer with per-attempt timeouts and exponential backoff.
type RetryCompleter struct {
	inner  Completer
	config *RetryConfig
	logger *slog.Logger
}

// NewRetryCompleter wraps an existing completer with retry logic.
func NewRetryCompleter(inner Completer, config *RetryConfig) *RetryCompleter {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryCompleter{
		inner:  inner,
		config: config,
		logger: slog.Default().With("component", "retry-completer"),
	}
}

// Complete sends a prompt with timeout and retry logic.
func (r *RetryCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var text string
	err := withRetry(ctx, r.config, r.logger, func(attemptCtx context.Context) error {
		var err error
		text, err = r.inner.Complete(attemptCtx, prompt, maxTokens)
		return err
	})
	return text, err
}

// withRetry runs operation up to MaxAttempts times with exponential backoff.
// Each attempt gets its own deadline so a hung provider call cannot hold
// resources past the configured timeout.
func withRetry(ctx context.Context, config *RetryConfig, logger *slog.Logger, operation func(context.Context) error) error {
	if config.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(backoffDelay(config, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}
		lastErr = operation(attemptCtx)
		cancel()

		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("provider call succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Debug("provider call failed, will retry",
			"attempt", attempt, "maxAttempts", config.MaxAttempts, "error", lastErr)
	}

	return fmt.Errorf("max attempts (%d) exhausted: %w", config.MaxAttempts, lastErr)
}

// backoffDelay returns the delay before the given attempt (attempt >= 2):
// BaseDelay * 2^(attempt-2), capped at MaxDelay.
func backoffDelay(config *RetryConfig, attempt int) time.Duration {
	delay := config.BaseDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			return config.MaxDelay
		}
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		return config.MaxDelay
	}
	return delay
}
