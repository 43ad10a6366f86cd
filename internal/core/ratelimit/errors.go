package ratelimit

import (
	"errors"
	"strings"
)

// Category classifies a failure for retry purposes.
type Category int

const (
	// CategoryUnknown means the error carries no tag; classification falls
	// back to substring matching.
	CategoryUnknown Category = iota
	// CategoryRetryable marks transient failures (timeouts, connection
	// resets, 5xx, 429) worth retrying with backoff.
	CategoryRetryable
	// CategoryPermanent marks failures that retrying cannot fix
	// (validation, business rules, other 4xx).
	CategoryPermanent
)

// Error tags an underlying error with a retry category at its point of
// origin, so classification does not depend on message text.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "ratelimit: unknown error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable wraps err as a transient failure.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: CategoryRetryable, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: CategoryPermanent, Err: err}
}

// retryableHints matches known transient failure text for errors that were
// not tagged at origin. Inherited fragility; tagged errors always win.
var retryableHints = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection",
	"network",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"rate limit",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// Classify resolves the retry category for an error. Tagged errors return
// their category; untagged errors are matched against known transient
// substrings and default to permanent.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var tagged *Error
	if errors.As(err, &tagged) && tagged != nil && tagged.Category != CategoryUnknown {
		return tagged.Category
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range retryableHints {
		if strings.Contains(msg, hint) {
			return CategoryRetryable
		}
	}
	return CategoryPermanent
}
