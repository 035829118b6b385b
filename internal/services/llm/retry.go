package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig defines retry behavior for model API calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	// (default: 3)
	MaxAttempts int

	// InitialBackoff is the wait time before the first retry (default: 2s)
	InitialBackoff time.Duration

	// MaxBackoff is the maximum wait time between retries (default: 60s)
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to backoff on each retry (default: 2.0)
	BackoffMultiplier float64
}

// Default retry constants for model API calls.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 2 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// NewDefaultRetryConfig returns a RetryConfig with sensible defaults for
// handling transient provider failures.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a rate limit
// error. Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the backoff duration after the given retry
// (zero-based). If apiDelay > 0 (from ExtractRetryDelay), it's used as the
// base. Otherwise, InitialBackoff is used. The result is capped at MaxBackoff.
func (c *RetryConfig) CalculateBackoff(retry int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		// Use API-provided delay plus small buffer
		base = apiDelay + 5*time.Second
	}

	// Apply exponential multiplier
	multiplier := 1.0
	for i := 0; i < retry; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	return backoff
}

// callWithRetry runs op until it succeeds, exhausts the attempt budget, or
// fails with a non-retryable error. Parse failures ride the same loop as
// transport failures, so op should cover the full call including response
// decoding.
func callWithRetry(ctx context.Context, logger arbor.ILogger, cfg *RetryConfig, provider string, op func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug().
					Str("provider", provider).
					Int("attempt", attempt).
					Msg("Model call succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			logger.Warn().
				Str("provider", provider).
				Int("attempt", attempt).
				Err(err).
				Msg("Model call failed with non-retryable error")
			return "", err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		// Rate limit errors carry an API-suggested delay; everything else
		// backs off exponentially from the initial value.
		var apiDelay time.Duration
		if IsRateLimitError(err) {
			apiDelay = ExtractRetryDelay(err)
		}
		backoff := cfg.CalculateBackoff(attempt-1, apiDelay)

		logger.Warn().
			Str("provider", provider).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("model call failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
