package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		status    int
		want      ErrorType
		retryable bool
	}{
		{401, ErrorTypeAuth, false},
		{403, ErrorTypeAuth, false},
		{429, ErrorTypeRateLimit, true},
		{400, ErrorTypeBadPrompt, false},
		{404, ErrorTypeBadPrompt, false},
		{408, ErrorTypeTransient, true},
		{503, ErrorTypeTransient, true},
		{200, ErrorTypeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, cause)
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{"quota", errors.New("Quota exhausted for project"), ErrorTypeRateLimit},
		{"bad key", errors.New("invalid API key provided: unauthorized"), ErrorTypeAuth},
		{"model missing", errors.New("model 'x' not found"), ErrorTypeBadPrompt},
		{"opaque", errors.New("something odd"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(Classify(tt.err)))
		})
	}
}

func TestClassifyKeepsClassifiedErrors(t *testing.T) {
	original := NewError(ErrorTypeEmptyResponse, "nothing")
	assert.Same(t, original, Classify(original))
	assert.NoError(t, Classify(nil))
}

func TestServiceUnavailable(t *testing.T) {
	cause := NewError(ErrorTypeTransient, "503")
	err := NewServiceUnavailableError(cause, 3)

	assert.True(t, IsServiceUnavailable(err))
	assert.False(t, err.IsRetryable())
	assert.False(t, IsRetryable(err))
	assert.True(t, IsRetryable(cause))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, "service_unavailable", err.Type.String())
}

func TestSanitizePrompt(t *testing.T) {
	assert.Equal(t, "short", SanitizePrompt("short", 50))

	long := strings.Repeat("a", 300) + strings.Repeat("z", 300)
	out := SanitizePrompt(long, 200)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 100)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 100)))
	assert.Contains(t, out, "[600 chars, hash:")
}
