package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Extraction
	}{
		{
			name:    "plain object",
			content: `{"ok": true, "value": "Press release", "confidence": 0.91, "needs_clarification": false}`,
			want:    Extraction{OK: true, Value: "Press release", Confidence: 0.91},
		},
		{
			name:    "fenced with prose and trailing comma",
			content: "Sure thing:\n```json\n{\"ok\": true, \"value\": \"2026-03-06\", \"confidence\": \"0.8\",}\n```",
			want:    Extraction{OK: true, Value: "2026-03-06", Confidence: 0.8},
		},
		{
			name:    "list value",
			content: `{"ok": true, "value": ["a.pdf", " ", "https://x.example"], "confidence": 0.9}`,
			want:    Extraction{OK: true, Value: []string{"a.pdf", "https://x.example"}, Confidence: 0.9},
		},
		{
			name:    "clarification without value",
			content: `{"ok": true, "value": null, "confidence": 0.4, "needs_clarification": true, "clarification_question": " Which one? "}`,
			want:    Extraction{OK: true, Confidence: 0.4, NeedsClarification: true, ClarificationQuestion: "Which one?"},
		},
		{
			name:    "missing ok with value",
			content: `{"value": "Soon", "confidence": 1.7}`,
			want:    Extraction{OK: true, Value: "Soon", Confidence: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExtraction(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := parseExtraction("I think it is the press release")
	assert.ErrorContains(t, err, "no JSON object")

	_, err = parseExtraction(`{"ok": true, "value": }`)
	assert.ErrorContains(t, err, "malformed")
}
