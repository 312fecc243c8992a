package openaiofficial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
)

func TestBuildInput(t *testing.T) {
	instructions, input := buildInput([]llm.CompletionMessage{
		llm.NewSystemMessage("You are biaBot"),
		llm.NewUserMessage("first"),
		{Role: llm.RoleAssistant, Content: "reply"},
		llm.NewUserMessage("second"),
	})

	assert.Equal(t, "You are biaBot", instructions)
	assert.Equal(t, "first\n\nAssistant: reply\n\nsecond", input)
}

func TestCompleteAgainstFakeAPI(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","created_at":1,"status":"completed","model":"gpt-test",
			"output":[{"type":"message","id":"msg_1","status":"completed","role":"assistant",
			"content":[{"type":"output_text","text":"What outcome are you aiming for?","annotations":[]}]}]}`))
	}))
	defer srv.Close()

	client := NewOfficialClientWithModel("test-key", "gpt-test", srv.URL)
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("rephrase"),
		llm.NewUserMessage("goal question"),
	})
	req.JSONMode = true

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "What outcome are you aiming for?", resp.Content)
	assert.Equal(t, "gpt-test", client.GetModelName())

	assert.Equal(t, "rephrase", body["instructions"])
	assert.Equal(t, "goal question", body["input"])
	text, ok := body["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", text["format"].(map[string]any)["type"])
}

func TestCompleteRejectsSystemOnlyRequest(t *testing.T) {
	client := NewOfficialClientWithModel("k", "m", "http://127.0.0.1:1")
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage("x")}))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestCompleteClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	client := NewOfficialClientWithModel("bad", "gpt-test", srv.URL)
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
}
