package providers

import (
	"context"
	"time"

	"github.com/sermady/stockdata-core/internal/apperr"
)

// maxAttempts and the backoff schedule implement spec.md §4.1's retry rule:
// the first attempt plus up to 3 retries (4 attempts total), waiting
// 1s/2s/4s before the successive retries, applied only to
// apperr.ProviderTransient and apperr.ProviderRateLimited failures.
const maxAttempts = 4

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// withRetry runs fn up to maxAttempts times, retrying only errors classified
// as transient or rate-limited. Any other error (permanent, unsupported,
// not-found) returns immediately on the first attempt.
func withRetry[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoffSchedule[attempt-1]
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		code := apperr.CodeOf(err)
		if code != apperr.ProviderTransient && code != apperr.ProviderRateLimited {
			return zero, err
		}
	}

	return zero, lastErr
}
