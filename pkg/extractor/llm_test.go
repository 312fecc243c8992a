package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
	"intake/pkg/catalog"
	"intake/pkg/intake"
)

type recordingClient struct {
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (r *recordingClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	r.requests = append(r.requests, req)
	return llm.CompletionResponse{Content: r.reply}, r.err
}

func (r *recordingClient) GetModelName() string { return "recording" }

func (r *recordingClient) lastPrompt() string {
	msgs := r.requests[len(r.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

func TestLLMExtract(t *testing.T) {
	client := &recordingClient{reply: `{"ok": true, "value": "Press release", "confidence": 0.83}`}
	l := NewLLM(client, WithSystemPrompt("stay in intake"))

	field := Field{ID: "service_type", Label: "Service Type", Type: catalog.TypeChoice, Required: true,
		Options: []string{"Press release", "Other"}}
	got, err := l.Extract(context.Background(), field, "we need media coverage", Context{"client_name": "ReadyOne"})
	require.NoError(t, err)
	assert.Equal(t, Extraction{OK: true, Value: "Press release", Confidence: 0.83}, got)

	req := client.requests[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, float32(llm.TemperatureDeterministic), req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, client.lastPrompt(), `["Press release","Other"]`)
	assert.Contains(t, client.lastPrompt(), `"client_name":"ReadyOne"`)
	assert.Contains(t, client.lastPrompt(), `"we need media coverage"`)
}

func TestLLMExtractUnparseable(t *testing.T) {
	l := NewLLM(&recordingClient{reply: "press release, probably"})
	_, err := l.Extract(context.Background(), Field{ID: "goal"}, "x", nil)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestLLMEmptyResponse(t *testing.T) {
	l := NewLLM(&recordingClient{reply: "  "})
	_, err := l.RefineReply(context.Background(), "fallback", "done", nil)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
}

func TestLLMSummarize(t *testing.T) {
	client := &recordingClient{reply: "Summary text"}
	l := NewLLM(client, WithTemperature(0.4), WithMaxTokens(700))

	payload := &intake.Payload{ServiceType: "Custom graphic", ProjectTitle: "Spring"}
	got, err := l.Summarize(context.Background(), intake.SampleProfile(), payload, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "Summary text", got)

	prompt := client.lastPrompt()
	assert.True(t, strings.HasPrefix(prompt, "Convert this intake JSON into a concise contractor-ready summary. No deliverable drafting and no strategic advice.\n\n"))
	assert.Contains(t, prompt, `"client_name":"ReadyOne Industries"`)
	assert.Contains(t, prompt, `"project_title":"Spring"`)
	assert.Equal(t, 700, client.requests[0].MaxTokens)
	assert.InDelta(t, 0.4, client.requests[0].Temperature, 1e-6)
}

func TestLLMGeneratePromptTruncatesContext(t *testing.T) {
	client := &recordingClient{reply: "What is the goal?"}
	l := NewLLM(client, WithContextTokens(10))

	known := Context{"notes": strings.Repeat("very long answer ", 200)}
	got, err := l.GeneratePrompt(context.Background(), Field{ID: "goal", Label: "Goal"}, known, []string{"Target Audience"})
	require.NoError(t, err)
	assert.Equal(t, "What is the goal?", got)
	assert.Less(t, len(client.lastPrompt()), 1000)
	assert.Contains(t, client.lastPrompt(), "Upcoming fields: Target Audience")
}
