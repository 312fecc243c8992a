package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/catalog"
	"intake/pkg/intake"
)

type scriptedCapability struct {
	extraction Extraction
	text       string
	err        error
	panicMsg   string
}

func (s *scriptedCapability) Extract(context.Context, Field, string, Context) (Extraction, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.extraction, s.err
}

func (s *scriptedCapability) GeneratePrompt(context.Context, Field, Context, []string) (string, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.text, s.err
}

func (s *scriptedCapability) Summarize(context.Context, *intake.Profile, *intake.Payload, string) (string, error) {
	return s.text, s.err
}

func (s *scriptedCapability) RefineReply(context.Context, string, string, Context) (string, error) {
	return s.text, s.err
}

type countingObserver map[string]int

func (c countingObserver) ObserveExtractor(op, outcome string) { c[op+":"+outcome]++ }

var serviceField = Field{ID: "service_type", Label: "Service Type", Type: catalog.TypeChoice, Required: true}

func TestGuardPassesResults(t *testing.T) {
	obs := countingObserver{}
	g := NewGuard(&scriptedCapability{
		extraction: Extraction{OK: true, Value: "Other", Confidence: 0.9},
		text:       "  Polished.  ",
	}, obs)

	got, err := g.Extract(context.Background(), serviceField, "misc", nil)
	require.NoError(t, err)
	assert.Equal(t, "Other", got.Value)

	reply := g.ReplyOr(context.Background(), "fallback", "await_service", nil)
	assert.Equal(t, "Polished.", reply)
	assert.True(t, g.Enabled())
	assert.Equal(t, 1, obs["extract:success"])
	assert.Equal(t, 1, obs["refine_reply:success"])
}

func TestGuardConvertsFailures(t *testing.T) {
	tests := []struct {
		name string
		cap  *scriptedCapability
	}{
		{"error", &scriptedCapability{err: errors.New("boom")}},
		{"declined", &scriptedCapability{extraction: Extraction{OK: false, Confidence: 0.9}}},
		{"blank text", &scriptedCapability{text: "   "}},
		{"panic", &scriptedCapability{panicMsg: "nil map"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := countingObserver{}
			g := NewGuard(tt.cap, obs)
			ctx := context.Background()

			_, err := g.Extract(ctx, serviceField, "x", nil)
			assert.ErrorIs(t, err, ErrUnavailable)

			_, err = g.GeneratePrompt(ctx, serviceField, nil, nil)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.Equal(t, 1, obs["extract:unavailable"])
			assert.Equal(t, 1, obs["generate_prompt:unavailable"])
		})
	}
}

func TestGuardReplyOrFallsBack(t *testing.T) {
	g := NewGuard(nil, nil)
	assert.False(t, g.Enabled())
	assert.Equal(t, "Type Submit to send this request.", g.ReplyOr(context.Background(), "Type Submit to send this request.", "await_confirmation", nil))

	_, err := g.Summarize(context.Background(), nil, nil, "fallback")
	assert.ErrorIs(t, err, ErrUnavailable)
}
