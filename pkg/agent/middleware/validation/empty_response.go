// Package validation rejects model replies that carry no usable content.
package validation

import (
	"context"
	"strings"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
	"intake/pkg/logx"
)

const (
	maxEmptyAttempts = 2

	jsonGuidance = "Your previous reply was empty. Reply with the requested JSON object only."
	textGuidance = "Your previous reply was empty. Please answer again."
)

// EmptyResponse returns middleware that retries a blank reply once with a guidance
// message appended, then fails with ErrorTypeEmptyResponse.
func EmptyResponse(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("empty-response")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				for attempt := 1; attempt <= maxEmptyAttempts; attempt++ {
					resp, err := next.Complete(ctx, req)
					if err != nil && !llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						//nolint:wrapcheck // passed through unchanged for the outer middleware
						return resp, err
					}
					if err == nil && strings.TrimSpace(resp.Content) != "" {
						return resp, nil
					}

					logger.Warn("Empty reply from %s (attempt %d/%d, stop=%q)",
						next.GetModelName(), attempt, maxEmptyAttempts, resp.StopReason)
					req = withGuidance(req)
				}
				return llm.CompletionResponse{}, llmerrors.NewError(
					llmerrors.ErrorTypeEmptyResponse, "model returned no content after guidance")
			},
			next.GetModelName,
		)
	}
}

func withGuidance(req llm.CompletionRequest) llm.CompletionRequest {
	guidance := textGuidance
	if req.JSONMode {
		guidance = jsonGuidance
	}
	messages := make([]llm.CompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, req.Messages...)
	req.Messages = append(messages, llm.NewUserMessage(guidance))
	return req
}
