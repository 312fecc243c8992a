package metrics

import (
	"context"
	"errors"
	"time"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
	"intake/pkg/agent/middleware/resilience/circuit"
	"intake/pkg/logx"
	"intake/pkg/utils"
)

// UsageExtractor returns token usage for a request and its response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor estimates usage with tiktoken, since not every provider reports it.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	for i := range req.Messages {
		promptTokens += utils.CountTokensSimple(req.Messages[i].Content)
	}
	return promptTokens, utils.CountTokensSimple(resp.Content)
}

// Middleware records latency, token usage and failures of every completion.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				operation := OperationFromContext(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}
				errorType := getErrorType(err)

				recorder.ObserveRequest(model, operation, promptTokens, completionTokens, err == nil, errorType, duration)

				if logger != nil {
					if err != nil {
						logger.Debug("llm request: model=%s op=%s status=error type=%s duration=%dms",
							model, operation, errorType, duration.Milliseconds())
					} else {
						logger.Debug("llm request: model=%s op=%s tokens=%d+%d duration=%dms",
							model, operation, promptTokens, completionTokens, duration.Milliseconds())
					}
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// getErrorType classifies errors for metrics labels.
func getErrorType(err error) string {
	if err == nil {
		return ""
	}

	var circuitErr *circuit.Error
	switch {
	case errors.As(err, &circuitErr):
		return "circuit_breaker"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return llmerrors.TypeOf(llmerrors.Classify(err)).String()
}
