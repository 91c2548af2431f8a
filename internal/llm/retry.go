package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// backoff is swapped out in tests.
var backoff = Backoff

// CompleteWithRetry calls c.Complete, retrying retryable failures up to
// MaxRetries attempts.
func CompleteWithRetry(ctx context.Context, c Completer, req Request, log *slog.Logger) (string, error) {
	var (
		out     string
		lastErr error
	)
	for attempt := range MaxRetries {
		out, lastErr = c.Complete(ctx, req)
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if log != nil {
			log.Warn("retryable llm error", "model", c.Model(), "attempt", attempt, "error", lastErr)
		}
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
