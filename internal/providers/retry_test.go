package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/apperr"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := withRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", apperr.New(apperr.ProviderTransient, "temporary")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", apperr.New(apperr.ProviderPermanent, "bad request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, apperr.Is(err, apperr.ProviderPermanent))
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", apperr.New(apperr.ProviderRateLimited, "slow down")
	})

	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestWithRetryStopsWaitingOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := withRetry(ctx, func(ctx context.Context) (string, error) {
		attempts++
		return "", apperr.New(apperr.ProviderTransient, "temporary")
	})

	require.Error(t, err)
	// the first attempt still runs (no pre-wait), but the cancelled
	// context aborts the backoff sleep before a second attempt fires.
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}
