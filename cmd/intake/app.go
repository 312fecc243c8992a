package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"intake/pkg/agent"
	"intake/pkg/config"
	"intake/pkg/dialogue"
	"intake/pkg/extractor"
	"intake/pkg/logx"
	"intake/pkg/metrics"
	"intake/pkg/persistence"
	"intake/pkg/session"
	"intake/pkg/ticketing"
)

const secretsPasswordEnv = "INTAKE_SECRETS_PASSWORD"

// app is the wired service shared by the serve and chat commands.
type app struct {
	cfg        *config.Config
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	store      persistence.Store
	sessions   session.Store
	capability extractor.Capability
	tickets    *ticketing.Client
	engine     *dialogue.Engine
	logger     *logx.Logger
}

// loadConfig reads the config file, unlocks the secrets file when present and fills
// credentials from it.
func loadConfig(configPath, secretsDir string, stdin io.Reader, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logx.Configure(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if config.SecretsFileExists(secretsDir) {
		password, err := secretsPassword(stdin, stderr, "Secrets password: ")
		if err != nil {
			return nil, err
		}
		secrets, err := config.DecryptSecretsFile(secretsDir, password)
		if err != nil {
			return nil, fmt.Errorf("failed to unlock secrets: %w", err)
		}
		config.SetDecryptedSecrets(secrets)
	}
	config.ResolveSecrets(cfg)
	return cfg, nil
}

// newApp builds every collaborator from cfg. Close releases them.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry(), logger: logx.NewLogger("intake")}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	store, err := persistence.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.store = store

	if a.sessions, err = openSessions(ctx, cfg.Session, a.metrics); err != nil {
		a.Close()
		return nil, err
	}

	a.capability, err = newCapability(cfg, a.registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.tickets = ticketing.NewClient(cfg.Monday)
	if a.tickets.MockMode() {
		a.logger.Info("Monday ticketing is in mock mode")
	}

	a.engine, err = dialogue.New(dialogue.Deps{
		Sessions:  a.sessions,
		Profiles:  a.store,
		Options:   a.store,
		Tickets:   a.tickets,
		Records:   a.store,
		Extractor: a.capability,
		Metrics:   a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openSessions(ctx context.Context, cfg config.SessionConfig, m *metrics.Metrics) (session.Store, error) {
	opts := session.Options{
		TTL:           cfg.TTL,
		SweepInterval: cfg.SweepInterval,
		MaxSessions:   cfg.MaxSessions,
		OnSizeChange:  m.SetActiveSessions,
	}
	if cfg.Backend == config.BackendRedis {
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		return store, nil
	}
	return session.NewMemoryStore(opts), nil
}

// newCapability returns the model-backed extractor, or Null when no provider is configured.
func newCapability(cfg *config.Config, reg prometheus.Registerer) (extractor.Capability, error) {
	client, err := agent.NewLLMClient(cfg, agent.Options{Registerer: reg, Logger: logx.NewLogger("llm")})
	if errors.Is(err, agent.ErrDisabled) {
		return extractor.Null{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return extractor.NewLLM(client,
		extractor.WithSystemPrompt(cfg.AI.SystemPrompt),
		extractor.WithMaxTokens(cfg.AI.MaxTokens),
		extractor.WithTemperature(cfg.AI.Temperature),
		extractor.WithContextTokens(cfg.AI.ContextTokens),
	), nil
}

func (a *app) Close() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Warn("Failed to close session store: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close store: %v", err)
		}
	}
}

// secretsPassword reads the secrets password from the environment or, on a terminal,
// from a hidden prompt.
func secretsPassword(stdin io.Reader, stderr io.Writer, prompt string) (string, error) {
	if password := os.Getenv(secretsPasswordEnv); password != "" {
		return password, nil
	}
	return readHidden(stdin, stderr, prompt)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimRight(line, "\r")
}
