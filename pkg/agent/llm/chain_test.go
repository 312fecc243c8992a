package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	content string
	err     error
	calls   int
	lastReq CompletionRequest
}

func (s *stubClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	s.calls++
	s.lastReq = req
	return CompletionResponse{Content: s.content}, s.err
}

func (s *stubClient) GetModelName() string { return "stub-model" }

func tagging(tag string, order *[]string) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				*order = append(*order, tag)
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	base := &stubClient{content: "ok"}

	client := Chain(base, tagging("outer", &order), tagging("inner", &order))
	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "stub-model", client.GetModelName())
}

func TestChainNoMiddlewares(t *testing.T) {
	base := &stubClient{content: "plain"}
	assert.Same(t, LLMClient(base), Chain(base))
}

func TestChainRequestModification(t *testing.T) {
	base := &stubClient{}
	jsonOnly := func(next LLMClient) LLMClient {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				req.JSONMode = true
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}

	_, err := Chain(base, jsonOnly).Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.True(t, base.lastReq.JSONMode)
}

func TestChainShortCircuit(t *testing.T) {
	base := &stubClient{}
	blocked := errors.New("blocked")
	deny := func(next LLMClient) LLMClient {
		return WrapClient(
			func(context.Context, CompletionRequest) (CompletionResponse, error) {
				return CompletionResponse{}, blocked
			},
			next.GetModelName,
		)
	}

	_, err := Chain(base, deny).Complete(context.Background(), NewCompletionRequest(nil))
	assert.ErrorIs(t, err, blocked)
	assert.Zero(t, base.calls)
}
