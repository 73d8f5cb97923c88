// Package retry provides bounded retry with exponential backoff for
// fallible external calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrExhausted is wrapped into the error returned when all attempts fail.
var ErrExhausted = errors.New("retry attempts exhausted")

// retryablePatterns match transient failures worth retrying: rate limits,
// network trouble, and server-side overload.
var retryablePatterns = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"connection",
	"socket",
	"temporary",
	"overloaded",
	"capacity",
}

// serverErrorPattern matches any 5xx HTTP status embedded in an error message.
var serverErrorPattern = regexp.MustCompile(`5[0-9]{2}`)

// Retryable reports whether an error looks transient.
//
// Classification is on the error text: provider SDKs and raw HTTP clients
// surface failures as opaque message strings, so this is the common
// denominator across providers.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return serverErrorPattern.MatchString(msg)
}

// Executor retries an operation with exponential backoff.
type Executor struct {
	// Attempts is the maximum number of tries, including the first.
	Attempts int

	// BaseDelay is the backoff before the second attempt. It doubles on
	// each subsequent attempt.
	BaseDelay time.Duration
}

// New creates an Executor. Non-positive arguments fall back to 3 attempts
// and a 1s base delay.
func New(attempts int, baseDelay time.Duration) *Executor {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Executor{Attempts: attempts, BaseDelay: baseDelay}
}

// Do runs op, retrying transient failures until the attempt budget runs out.
//
// Non-retryable errors propagate immediately without further attempts.
// Backoff sleeps honor ctx cancellation. When all attempts fail the
// returned error wraps both ErrExhausted and the last underlying error.
func (e *Executor) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < e.Attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			return err
		}

		if attempt == e.Attempts-1 {
			break
		}

		delay := e.BaseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: failed after %d attempts: %w", ErrExhausted, e.Attempts, lastErr)
}
