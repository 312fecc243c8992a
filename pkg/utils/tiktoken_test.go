package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Zero(t, tc.CountTokens(""))
	assert.Positive(t, tc.CountTokens("Please share your client code."))
	assert.Greater(t, tc.CountTokens(strings.Repeat("intake ", 50)), tc.CountTokens("intake"))
}

func TestCountTokensWithoutCodec(t *testing.T) {
	tc := &TokenCounter{}
	assert.Equal(t, 3, tc.CountTokens("twelve chars"))
}

func TestTruncateToTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	short := "Custom graphic"
	assert.Equal(t, short, tc.TruncateToTokenLimit(short, 100))
	assert.Empty(t, tc.TruncateToTokenLimit(short, 0))

	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	out := tc.TruncateToTokenLimit(long, 20)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Less(t, len(out), len(long))
	assert.LessOrEqual(t, tc.CountTokens(strings.TrimSuffix(out, "...")), 20)
}

func TestSharedCounter(t *testing.T) {
	assert.Equal(t, shared().CountTokens("hello world"), CountTokensSimple("hello world"))
	assert.Equal(t, "hello", TruncateTokens("hello", 10))
}
