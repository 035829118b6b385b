package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind categorizes model call failures so callers can decide between
// retrying, falling back, and aborting.
type FailureKind string

const (
	// KindTimeout covers calls that exceeded the per-call deadline.
	KindTimeout FailureKind = "timeout"
	// KindRateLimited covers 429 and quota exhaustion responses.
	KindRateLimited FailureKind = "rate_limited"
	// KindAuth covers rejected or missing credentials. Never retried.
	KindAuth FailureKind = "auth"
	// KindParse covers responses that carried no usable JSON payload.
	KindParse FailureKind = "parse"
	// KindNetwork covers transient transport and server-side failures.
	KindNetwork FailureKind = "network"
	// KindPermanent covers malformed requests and other failures that will
	// not succeed on retry.
	KindPermanent FailureKind = "permanent"
)

// ServiceError wraps a provider failure with its classification.
type ServiceError struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *ServiceError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindNetwork, KindParse:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err should be retried. Unclassified errors
// default to retryable since provider SDKs surface transient failures in
// many shapes; cancellation is the exception.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// IsAuthError reports whether err is a credential failure. The pipeline
// aborts the whole run on these instead of producing fallbacks.
func IsAuthError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == KindAuth
}

// Classify wraps err in a ServiceError carrying its failure kind. Errors
// that are already classified pass through unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Kind: classifyKind(err), Provider: provider, Err: err}
}

// classifyKind maps an SDK error onto the failure taxonomy. Both provider
// SDKs surface HTTP status codes in error strings, so substring checks are
// the stable way to distinguish them.
func classifyKind(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"):
		return KindRateLimited
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "x-api-key"),
		strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "400"),
		strings.Contains(msg, "invalid_request"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "not_found"):
		return KindPermanent
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"):
		return KindTimeout
	default:
		// 5xx, connection resets, and anything else the SDKs did not
		// label cleanly count as transient.
		return KindNetwork
	}
}
