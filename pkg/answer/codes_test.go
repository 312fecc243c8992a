package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCodeCandidates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"bare code", "READYONE01", []string{"READYONE01"}},
		{"lowercase phrase", "my client code is readyone01", []string{"READYONE01"}},
		{"phrase without digits", "code: ABCDEF", []string{"ABCDEF"}},
		{"id equals", "id=acme-7", []string{"ACME-7"}},
		{"phrase first then tokens", "try x9y9 or client id is zz100", []string{"ZZ100", "X9Y9"}},
		{"dedupe case-insensitive", "abc123 ABC123 Abc123", []string{"ABC123"}},
		{"stop words and plain words", "hello please help me", []string{}},
		{"too short", "a1", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCodeCandidates(tt.input))
		})
	}
}

func TestLooksLikeCodeAttempt(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"READYONE01", true},
		{"my code is banana", true},
		{"ACMECO", true},
		{"acmeco", false},
		{"ACME", false},
		{"hi there", false},
		{"who are you?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeCodeAttempt(tt.input, ExtractCodeCandidates(tt.input)))
		})
	}
}
