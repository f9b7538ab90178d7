package providers

import (
	"context"
	"errors"
	"strconv"
	"time"
)

type rateLimitError struct{}

func (e *rateLimitError) Error() string { return "rate limited" }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string {
	if e.body == "" {
		return "server error: status " + strconv.Itoa(e.statusCode)
	}
	return "server error: " + e.body
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

func isRetryable(err error) bool {
	var rl *rateLimitError
	var se *serverError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// retryBase is the first backoff delay; it doubles on each attempt.
var retryBase = time.Second

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * retryBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
