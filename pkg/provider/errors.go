package provider

import (
	"context"
	"errors"
	"fmt"
)

// TransientError indicates a retryable provider failure: network errors,
// timeouts, rate limits, server-side outages.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// PermanentError indicates a non-retryable failure: a malformed or
// unsupported document that no amount of retrying or failover can fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error as non-retryable.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is retryable. A context deadline counts as
// transient: a call that exceeded its timeout follows the retry path.
// Unclassified errors default to transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return true
}

// IsPermanent reports whether err is a non-retryable provider failure.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// ClassifyStatus wraps an HTTP-level provider error according to its status
// code. Rate limits, timeouts and server errors are transient; client errors
// that indicate an unprocessable document are permanent.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == 408 || status == 429 || status >= 500:
		return Transient(err)
	case status >= 400:
		return Permanent(err)
	default:
		return Transient(err)
	}
}

// classifyCallError normalizes errors coming out of a provider call made
// under a per-call timeout.
func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(err)
	}
	return err
}
