package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
)

func TestConvertMessages(t *testing.T) {
	contents, system, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("one"),
		llm.NewSystemMessage("two"),
		llm.NewUserMessage("hello"),
		{Role: llm.RoleAssistant, Content: "hi"},
		llm.NewUserMessage(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)

	_, _, err = convertMessages(nil)
	assert.Error(t, err)
	_, _, err = convertMessages([]llm.CompletionMessage{llm.NewSystemMessage("only")})
	assert.Error(t, err)
}

func TestGetStopReason(t *testing.T) {
	resp := func(r genai.FinishReason) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: r}}}
	}
	assert.Equal(t, "unknown", getStopReason(nil))
	assert.Equal(t, "end_turn", getStopReason(resp(genai.FinishReasonStop)))
	assert.Equal(t, "max_tokens", getStopReason(resp(genai.FinishReasonMaxTokens)))
	assert.Equal(t, "safety", getStopReason(resp(genai.FinishReasonSafety)))
}

func TestCompleteAgainstFakeAPI(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Mission summary"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClientWithModel("test-key", "gemini-test", srv.URL)
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage("summarize"), llm.NewUserMessage("{}")})
	req.JSONMode = true

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Mission summary", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)

	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, body["systemInstruction"])
}

func TestCompleteClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client := NewGeminiClientWithModel("test-key", "gemini-test", srv.URL)
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeRateLimit))
}
