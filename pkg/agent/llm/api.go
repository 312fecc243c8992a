// Package llm provides the completion interface shared by every model provider and the
// middleware chain wrapped around it.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem CompletionRole = "system"
	// RoleUser carries the text being asked about.
	RoleUser CompletionRole = "user"
	// RoleAssistant carries earlier model output.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens bounds replies when the caller does not set a limit. Intake replies are
	// short: a JSON extraction, one prompt sentence or a summary.
	DefaultMaxTokens = 600

	// TemperatureDeterministic is used for structured extraction.
	TemperatureDeterministic = 0.0

	// TemperatureDefault is used for prompt phrasing and summaries.
	TemperatureDefault = 0.2
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole `json:"role"`
	Content string         `json:"content"`
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
	// JSONMode asks providers that support it to constrain output to a JSON object.
	JSONMode bool
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string // Main response text
	StopReason string // "end_turn", "max_tokens", ...
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface {
	// Complete generates a completion for the request.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name used for labels and logs.
	GetModelName() string
}

// NewCompletionRequest creates a request with default token and temperature settings.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// LLMConfig holds provider connection settings.
type LLMConfig struct {
	Provider    string
	APIKey      string
	ModelName   string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// Validate checks that the configuration can reach a provider. Ollama runs without a key.
func (c LLMConfig) Validate() error {
	if c.APIKey == "" && c.Provider != "ollama" {
		return fmt.Errorf("API key cannot be empty")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}
