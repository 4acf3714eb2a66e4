package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(3, func() time.Time { return current })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Equal(t, 0, limiter.Remaining())
}

func TestRateLimiterBlocksUntilSlotFrees(t *testing.T) {
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, func() time.Time { return current })

	var slept time.Duration
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		current = current.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	// Третий запрос ждет освобождения слота в минутном окне
	require.NoError(t, limiter.Wait(ctx))
	assert.Equal(t, time.Minute, slept)
	assert.Equal(t, 1, limiter.Remaining())
}

func TestRateLimiterWindowSlides(t *testing.T) {
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, func() time.Time { return current })

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.Equal(t, 0, limiter.Remaining())

	// Спустя минуту окно пустеет
	current = current.Add(time.Minute + time.Second)
	assert.Equal(t, 2, limiter.Remaining())
}

func TestRateLimiterContextCancel(t *testing.T) {
	current := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, func() time.Time { return current })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Wait(ctx))

	cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}
