package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/llmerrors"
	"intake/pkg/agent/middleware/metrics"
	"intake/pkg/intake"
	"intake/pkg/logx"
	"intake/pkg/utils"
)

const (
	defaultContextTokens = 1500
	logPromptChars       = 400
	debugDomain          = "extractor"
)

// LLM implements Capability on top of an llm.LLMClient.
type LLM struct {
	client        llm.LLMClient
	systemPrompt  string
	maxTokens     int
	temperature   float32
	contextTokens int
}

var _ Capability = (*LLM)(nil)

// LLMOption configures an LLM capability.
type LLMOption func(*LLM)

// WithSystemPrompt sets the instructions sent with every call.
func WithSystemPrompt(prompt string) LLMOption {
	return func(l *LLM) { l.systemPrompt = prompt }
}

// WithMaxTokens bounds completion length.
func WithMaxTokens(n int) LLMOption {
	return func(l *LLM) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature for free-text operations. Extraction
// always runs deterministically.
func WithTemperature(t float64) LLMOption {
	return func(l *LLM) { l.temperature = float32(t) }
}

// WithContextTokens bounds the serialized known-answer context in prompts.
func WithContextTokens(n int) LLMOption {
	return func(l *LLM) {
		if n > 0 {
			l.contextTokens = n
		}
	}
}

// NewLLM creates a capability backed by client.
func NewLLM(client llm.LLMClient, opts ...LLMOption) *LLM {
	l := &LLM{
		client:        client,
		maxTokens:     llm.DefaultMaxTokens,
		temperature:   llm.TemperatureDefault,
		contextTokens: defaultContextTokens,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extract asks the model for a JSON verdict and parses it leniently.
func (l *LLM) Extract(ctx context.Context, f Field, text string, c Context) (Extraction, error) {
	var b strings.Builder
	b.WriteString("Extract the answer to one intake question from the user's message.\n")
	fmt.Fprintf(&b, "Question id: %s\nQuestion label: %s\nQuestion type: %s\nRequired: %t\n", f.ID, f.Label, f.Type, f.Required)
	if len(f.Options) > 0 {
		fmt.Fprintf(&b, "Allowed options (value must be one of these exactly): %s\n", l.encode(f.Options))
	}
	if len(c) > 0 {
		fmt.Fprintf(&b, "Context: %s\n", l.encode(c))
	}
	fmt.Fprintf(&b, "User message: %q\n\n", text)
	b.WriteString(`Respond with ONLY a JSON object: {"ok": bool, "value": string | string[] | null, ` +
		`"confidence": number between 0 and 1, "needs_clarification": bool, "clarification_question": string}. ` +
		`Dates must be YYYY-MM-DD. Use a list for references and files. Set ok=false when the message does not answer the question.`)

	req := l.request(b.String(), llm.TemperatureDeterministic)
	req.JSONMode = true
	content, err := l.complete(ctx, OpExtract, req)
	if err != nil {
		return Extraction{}, err
	}
	out, err := parseExtraction(content)
	if err != nil {
		return Extraction{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "unparseable extraction")
	}
	return out, nil
}

// GeneratePrompt asks for one short conversational question.
func (l *LLM) GeneratePrompt(ctx context.Context, f Field, known Context, remaining []string) (string, error) {
	var b strings.Builder
	b.WriteString("Write the next question of a project intake chat. Ask for exactly one field, in one or two short sentences. ")
	b.WriteString("Do not repeat answers already given and do not ask about the upcoming fields.\n")
	fmt.Fprintf(&b, "Field label: %s\nField type: %s\nRequired: %t\n", f.Label, f.Type, f.Required)
	if len(f.Options) > 0 {
		fmt.Fprintf(&b, "Options to list: %s\n", strings.Join(f.Options, ", "))
	}
	if len(known) > 0 {
		fmt.Fprintf(&b, "Known so far: %s\n", l.encode(known))
	}
	if len(remaining) > 0 {
		fmt.Fprintf(&b, "Upcoming fields: %s\n", strings.Join(remaining, "; "))
	}
	b.WriteString("Reply with the question text only.")
	return l.complete(ctx, OpGeneratePrompt, l.request(b.String(), l.temperature))
}

// Summarize converts the payload into a contractor-ready summary.
func (l *LLM) Summarize(ctx context.Context, profile *intake.Profile, payload *intake.Payload, _ string) (string, error) {
	input := map[string]any{"request": payload}
	if profile != nil {
		input["client_profile"] = map[string]any{
			"client_name":          profile.ClientName,
			"preferred_tone":       profile.PreferredTone,
			"required_disclaimers": profile.RequiredDisclaimers,
		}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary input: %w", err)
	}
	prompt := "Convert this intake JSON into a concise contractor-ready summary. " +
		"No deliverable drafting and no strategic advice.\n\n" + string(data)
	return l.complete(ctx, OpSummarize, l.request(prompt, l.temperature))
}

// RefineReply rewrites fallback in a friendlier voice while keeping its facts.
func (l *LLM) RefineReply(ctx context.Context, fallback, phase string, hints Context) (string, error) {
	var b strings.Builder
	b.WriteString("Rewrite this intake assistant reply so it reads naturally. Keep every fact, code, option, ")
	b.WriteString("date and number exactly as written. Do not add new questions or information.\n")
	fmt.Fprintf(&b, "Conversation phase: %s\n", phase)
	if len(hints) > 0 {
		fmt.Fprintf(&b, "Context: %s\n", l.encode(hints))
	}
	fmt.Fprintf(&b, "Reply:\n%s\n\nRespond with the rewritten reply only.", fallback)
	return l.complete(ctx, OpRefineReply, l.request(b.String(), l.temperature))
}

func (l *LLM) request(prompt string, temperature float32) llm.CompletionRequest {
	messages := make([]llm.CompletionMessage, 0, 2)
	if l.systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(l.systemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(prompt))
	req := llm.NewCompletionRequest(messages)
	req.MaxTokens = l.maxTokens
	req.Temperature = temperature
	return req
}

func (l *LLM) complete(ctx context.Context, op string, req llm.CompletionRequest) (string, error) {
	ctx = metrics.WithOperation(ctx, op)
	prompt := req.Messages[len(req.Messages)-1].Content
	logx.Debug(ctx, debugDomain, "%s prompt: %s", op, llmerrors.SanitizePrompt(prompt, logPromptChars))

	resp, err := l.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", op, err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, op+" returned no content")
	}
	logx.Debug(ctx, debugDomain, "%s response: %s", op, llmerrors.SanitizePrompt(content, logPromptChars))
	return content, nil
}

// encode serializes v as JSON, truncated to the context token budget.
func (l *LLM) encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return utils.TruncateTokens(string(data), l.contextTokens)
}
