// Package ratelimit holds model calls to the configured tokens-per-minute budget.
package ratelimit

import (
	"context"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
	"intake/pkg/agent/middleware/metrics"
	"intake/pkg/limiter"
	"intake/pkg/utils"
)

// TokenEstimator estimates the number of prompt tokens for a request.
type TokenEstimator interface {
	EstimatePrompt(req llm.CompletionRequest) int
}

// DefaultTokenEstimator counts prompt tokens with tiktoken.
type DefaultTokenEstimator struct{}

// EstimatePrompt sums the token counts of every message.
//
//nolint:gocritic // value receiver matches the interface
func (DefaultTokenEstimator) EstimatePrompt(req llm.CompletionRequest) int {
	total := 0
	for i := range req.Messages {
		total += utils.CountTokensSimple(req.Messages[i].Content)
	}
	return total
}

// Middleware waits for prompt plus max-output tokens before each request. When the budget
// cannot be met before the context ends the call fails as a rate-limit error.
func Middleware(budget *limiter.Limiter, estimator TokenEstimator, recorder metrics.Recorder) llm.Middleware {
	if estimator == nil {
		estimator = DefaultTokenEstimator{}
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		if !budget.Enabled() {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.GetModelName()
				tokens := estimator.EstimatePrompt(req) + req.MaxTokens

				if err := budget.Wait(ctx, model, tokens); err != nil {
					recorder.IncThrottle(model, "rate_limit")
					return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "token budget exhausted")
				}

				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
