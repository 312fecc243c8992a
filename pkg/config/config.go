// Package config provides configuration loading, validation, and secret resolution for the
// intake service. It handles YAML config files, environment variable substitution and
// INTAKE_* environment overrides.
package config

import (
	"time"
)

// AI provider names.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// Backend names shared by the session and store sections.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// DefaultSystemPrompt keeps the model inside intake duty.
const DefaultSystemPrompt = "You are an intake assistant. Stay in intake mode only. " +
	"Ask and organize project request information only. " +
	"Do not generate final deliverables or legal or financial advice."

// DefaultMondayAPIURL is the public Monday GraphQL endpoint.
const DefaultMondayAPIURL = "https://api.monday.com/v2"

// Config is the full service configuration.
type Config struct {
	AppName string        `yaml:"app_name"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Store   StoreConfig   `yaml:"store"`
	AI      AIConfig      `yaml:"ai"`
	Monday  MondayConfig  `yaml:"monday"`
	Auth    AuthConfig    `yaml:"auth"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	AuthRateLimit   int           `yaml:"auth_rate_limit"`  // requests per window per IP on /auth/client-code
	AuthRateWindow  time.Duration `yaml:"auth_rate_window"` // window for AuthRateLimit
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxMessageChars int           `yaml:"max_message_chars"`
}

// LogConfig controls the logx sink.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// SessionConfig controls where conversation state lives and how long it is kept.
type SessionConfig struct {
	Backend       string        `yaml:"backend"`        // memory or redis
	TTL           time.Duration `yaml:"ttl"`            // 0 = never expire
	SweepInterval time.Duration `yaml:"sweep_interval"` // memory: expiry sweep; redis: session count sampling
	MaxSessions   int           `yaml:"max_sessions"`   // 0 = unbounded, memory backend only
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the redis session backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StoreConfig selects the profile, service option and request log store.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // memory or sqlite
	SQLitePath string `yaml:"sqlite_path"`
	SkipSeed   bool   `yaml:"skip_seed"` // do not insert the sample client and default options
}

// AIConfig selects and tunes the semantic extractor.
type AIConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	TokensPerMinute int           `yaml:"tokens_per_minute"` // 0 = unlimited
	ContextTokens   int           `yaml:"context_tokens"`    // budget for known-answer context in prompts
	SystemPrompt    string        `yaml:"system_prompt"`
	Retry           RetryConfig   `yaml:"retry"`
	Circuit         CircuitConfig `yaml:"circuit"`
}

// RetryConfig configures retries of transient LLM failures.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// CircuitConfig configures the LLM circuit breaker.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MondayConfig configures the ticketing sink.
type MondayConfig struct {
	APIURL    string            `yaml:"api_url"`
	APIToken  string            `yaml:"api_token"`
	BoardID   string            `yaml:"board_id"`
	MockMode  bool              `yaml:"mock_mode"`
	Timeout   time.Duration     `yaml:"timeout"`
	ColumnMap map[string]string `yaml:"column_map"`
}

// AuthConfig configures client tokens and admin access.
type AuthConfig struct {
	TokenSecret   string        `yaml:"token_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminKey      string        `yaml:"admin_key"`
	AdminPassword string        `yaml:"admin_password"`
}

// DefaultColumnMap maps logical ticket fields to Monday column ids.
func DefaultColumnMap() map[string]string {
	return map[string]string{
		"status":       "status",
		"client":       "text_client",
		"client_code":  "text_code",
		"service_type": "text_service",
		"audience":     "text_audience",
		"due_date":     "date_due",
		"urgency":      "text_urgency",
		"approver":     "text_approver",
		"summary":      "long_summary",
		"links":        "long_links",
	}
}

// Default returns a configuration usable for local development with no file at all.
func Default() *Config {
	return &Config{
		AppName: "Intake API",
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:5173"},
			AuthRateLimit:   15,
			AuthRateWindow:  time.Minute,
			ShutdownTimeout: 5 * time.Second,
			MaxMessageChars: 4000,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Session: SessionConfig{
			Backend:       BackendMemory,
			SweepInterval: time.Minute,
			Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "intake:session:"},
		},
		Store: StoreConfig{Backend: BackendMemory, SQLitePath: "intake.db"},
		AI: AIConfig{
			Provider:      ProviderNone,
			Timeout:       20 * time.Second,
			MaxTokens:     600,
			Temperature:   0.2,
			ContextTokens: 1500,
			SystemPrompt:  DefaultSystemPrompt,
			Retry:         RetryConfig{MaxAttempts: 2, InitialDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
			Circuit:       CircuitConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 30 * time.Second},
		},
		Monday: MondayConfig{
			APIURL:    DefaultMondayAPIURL,
			MockMode:  true,
			Timeout:   20 * time.Second,
			ColumnMap: DefaultColumnMap(),
		},
		Auth: AuthConfig{
			TokenSecret: "dev-token-secret-change-this-32-bytes-minimum",
			TokenTTL:    480 * time.Minute,
			AdminKey:    "dev-admin-key",
		},
	}
}

// DefaultModel returns the model used when ai.model is empty.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4.1-mini"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	case ProviderOllama:
		return "llama3.1"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	default:
		return ""
	}
}

// AIEnabled reports whether a real provider is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.Provider != "" && c.AI.Provider != ProviderNone
}
