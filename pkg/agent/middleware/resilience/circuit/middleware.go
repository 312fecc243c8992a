package circuit

import (
	"context"

	"intake/pkg/agent/llm"
)

// Middleware fails fast with *Error while the breaker is open, so a dead provider costs a
// turn nothing but the rule-only fallback.
func Middleware(b *Breaker) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if err := b.Admit(); err != nil {
					return llm.CompletionResponse{}, err
				}
				resp, err := next.Complete(ctx, req)
				b.Record(err == nil)
				//nolint:wrapcheck // passed through unchanged for the outer middleware
				return resp, err
			},
			next.GetModelName,
		)
	}
}
