package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l := New(0)
	assert.False(t, l.Enabled())
	assert.NoError(t, l.Reserve("m", 1_000_000))
	assert.NoError(t, l.Wait(context.Background(), "m", 1_000_000))

	var nilLimiter *Limiter
	assert.False(t, nilLimiter.Enabled())
	assert.NoError(t, nilLimiter.Reserve("m", 1))
}

func TestReserveConsumesBudgetPerModel(t *testing.T) {
	l := New(600)

	require.NoError(t, l.Reserve("gpt", 500))
	err := l.Reserve("gpt", 200)
	assert.ErrorIs(t, err, ErrRateLimit)

	require.NoError(t, l.Reserve("claude", 500), "models have separate buckets")
	assert.LessOrEqual(t, l.Available("gpt"), 100)
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(60) // one token per second
	require.NoError(t, l.Reserve("m", 60))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "m", 30)
	assert.ErrorIs(t, err, ErrRateLimit)
}

func TestOversizedRequestIsClamped(t *testing.T) {
	l := New(100)
	assert.NoError(t, l.Reserve("m", 10_000))
	assert.ErrorIs(t, l.Reserve("m", 50), ErrRateLimit)
}
