package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// The typed errors below classify a failed completion call. Each one
// unwraps to its cause, so errors.As finds the *APIError with the status
// and request id, and errors.Is reaches context or socket errors.

// AuthError is a 401 or 403: the key is wrong, revoked or lacks access.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "credentials rejected: " + e.APIError.Error() }
func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError is a 429 that is not about quota. RetryAfter is zero when
// the provider gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry in %s: %s", e.RetryAfter.Round(time.Second), e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// ModelNotFoundError means the model is unknown to the provider or, for a
// local runtime, has not been pulled.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string { return "unknown model: " + e.APIError.Error() }
func (e *ModelNotFoundError) Unwrap() error { return e.APIError }

// BadRequestError is a 400: the provider refused the request as sent, for
// example an oversized prompt or an out-of-range max_tokens.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "request rejected: " + e.APIError.Error() }
func (e *BadRequestError) Unwrap() error { return e.APIError }

// QuotaExceededError is a billing or quota refusal.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string { return "quota exceeded: " + e.APIError.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.APIError }

// ServerError is a 5xx from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "provider failure: " + e.APIError.Error() }
func (e *ServerError) Unwrap() error { return e.APIError }

// UnreachableError means no HTTP response arrived at all. Err is the
// transport error, usually a *url.Error.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("completion endpoint %s unreachable: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("completion endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Timeout reports whether the call gave up waiting rather than being
// refused.
func (e *UnreachableError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(e.Err, &nerr) && nerr.Timeout()
}

// retryable reports whether a later attempt at the same request may
// succeed.
func retryable(err error) bool {
	var (
		rl  *RateLimitError
		srv *ServerError
	)
	return errors.As(err, &rl) || errors.As(err, &srv)
}
