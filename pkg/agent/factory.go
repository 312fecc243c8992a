// Package agent builds the model client used by the extractor: the provider adapter picked
// from configuration, wrapped in the resilience and metrics middleware chain.
package agent

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"intake/pkg/agent/internal/llmimpl/anthropic"
	"intake/pkg/agent/internal/llmimpl/google"
	"intake/pkg/agent/internal/llmimpl/ollama"
	"intake/pkg/agent/internal/llmimpl/openaiofficial"
	"intake/pkg/agent/llm"
	"intake/pkg/agent/middleware/metrics"
	"intake/pkg/agent/middleware/resilience/circuit"
	"intake/pkg/agent/middleware/resilience/ratelimit"
	"intake/pkg/agent/middleware/resilience/retry"
	"intake/pkg/agent/middleware/resilience/timeout"
	"intake/pkg/agent/middleware/validation"
	"intake/pkg/config"
	"intake/pkg/limiter"
	"intake/pkg/logx"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("llm provider disabled")

// Options tune client construction. The zero value registers no metrics.
type Options struct {
	Registerer prometheus.Registerer
	Logger     *logx.Logger
}

// NewRawClient creates the provider adapter without middleware.
func NewRawClient(ai config.AIConfig) (llm.LLMClient, error) {
	model := ai.Model
	if model == "" {
		model = config.DefaultModel(ai.Provider)
	}

	cfg := llm.LLMConfig{
		Provider:    ai.Provider,
		APIKey:      ai.APIKey,
		ModelName:   model,
		BaseURL:     ai.BaseURL,
		MaxTokens:   ai.MaxTokens,
		Temperature: float32(ai.Temperature),
	}

	switch ai.Provider {
	case "", config.ProviderNone:
		return nil, ErrDisabled
	case config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle, config.ProviderOllama:
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ai.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", ai.Provider, err)
	}

	switch ai.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(cfg.APIKey, cfg.ModelName, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(cfg.APIKey, cfg.ModelName, cfg.BaseURL), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(cfg.APIKey, cfg.ModelName, cfg.BaseURL), nil
	default:
		return ollama.NewOllamaClientWithModel(cfg.BaseURL, cfg.ModelName), nil
	}
}

// NewLLMClient creates the configured provider client wrapped in the middleware chain:
//
//	metrics -> circuit breaker -> empty-reply guard -> retry -> rate limit -> timeout -> provider
func NewLLMClient(cfg *config.Config, opts Options) (llm.LLMClient, error) {
	raw, err := NewRawClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	return Wrap(raw, cfg.AI, opts), nil
}

// Wrap applies the middleware chain to an existing client.
func Wrap(raw llm.LLMClient, ai config.AIConfig, opts Options) llm.LLMClient {
	var recorder metrics.Recorder = metrics.Nop()
	if opts.Registerer != nil {
		recorder = metrics.NewPrometheusRecorder(opts.Registerer)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logx.NewLogger("llm")
	}

	breaker := circuit.New(circuit.Config{
		FailureThreshold: ai.Circuit.FailureThreshold,
		SuccessThreshold: ai.Circuit.SuccessThreshold,
		Timeout:          ai.Circuit.Timeout,
	})
	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:   ai.Retry.MaxAttempts,
		InitialDelay:  ai.Retry.InitialDelay,
		MaxDelay:      ai.Retry.MaxDelay,
		BackoffFactor: retry.DefaultConfig.BackoffFactor,
		Jitter:        true,
	}, nil)

	return llm.Chain(raw,
		metrics.Middleware(recorder, nil, logger),
		circuit.Middleware(breaker),
		validation.EmptyResponse(logger),
		retry.Middleware(policy),
		ratelimit.Middleware(limiter.New(ai.TokensPerMinute), nil, recorder),
		timeout.Middleware(ai.Timeout),
	)
}
