// Package utils provides tiktoken-based token counting used to budget model prompts.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with a GPT-4 compatible encoding. Other providers tokenize
// differently; the count is a budget estimate, not a billing figure.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

//nolint:gochecknoglobals // shared codec, loaded once
var (
	sharedOnce    sync.Once
	sharedCounter *TokenCounter
)

func shared() *TokenCounter {
	sharedOnce.Do(func() {
		c, err := NewTokenCounter()
		if err != nil {
			c = &TokenCounter{}
		}
		sharedCounter = c
	})
	return sharedCounter
}

// CountTokens returns the number of tokens in text. Without a codec it falls back to four
// characters per token.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit cuts text to at most limit tokens, appending "..." when it cut.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if tc.CountTokens(text) <= limit {
		return text
	}

	if tc.codec != nil {
		ids, _, err := tc.codec.Encode(text)
		if err == nil && len(ids) > limit {
			if out, decErr := tc.codec.Decode(ids[:limit]); decErr == nil {
				return out + "..."
			}
		}
	}

	charLimit := limit * 4
	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "..."
}

// CountTokensSimple counts tokens with the shared counter.
func CountTokensSimple(text string) int {
	return shared().CountTokens(text)
}

// TruncateTokens truncates with the shared counter.
func TruncateTokens(text string, limit int) string {
	return shared().TruncateToTokenLimit(text, limit)
}
