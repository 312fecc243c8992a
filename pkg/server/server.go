// Package server exposes the intake service over HTTP: the chat endpoint, client-code login,
// the structured intake form API for authenticated clients, and the admin API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake/pkg/answer"
	"intake/pkg/auth"
	"intake/pkg/config"
	"intake/pkg/dialogue"
	"intake/pkg/extractor"
	"intake/pkg/intake"
	"intake/pkg/logx"
	"intake/pkg/metrics"
	"intake/pkg/persistence"
	"intake/pkg/ticketing"
)

// APIPrefix is the mount point of the versioned API.
const APIPrefix = "/api/v1"

// Chat handles one conversational turn.
type Chat interface {
	HandleMessage(ctx context.Context, req dialogue.Request) (*dialogue.Response, error)
}

// Tickets creates and verifies Monday items.
type Tickets interface {
	CreateItem(ctx context.Context, profile *intake.Profile, payload *intake.Payload, summary string) (ticketing.Result, error)
	VerifyCredentials(ctx context.Context, req ticketing.VerifyRequest) ticketing.VerifyResult
}

// Deps are the collaborators behind the routes. Chat, Store, Tickets and Issuer are required.
type Deps struct {
	Config     config.ServerConfig
	Chat       Chat
	Store      persistence.Store
	Tickets    Tickets
	Issuer     *auth.Issuer
	Admin      auth.AdminChecker
	Normalizer *answer.Normalizer
	// Summarizer writes preview and submit summaries. Nil uses the deterministic summary.
	Summarizer *extractor.Guard
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Version  string
}

// Server represents the intake HTTP API.
type Server struct {
	cfg        config.ServerConfig
	chat       Chat
	store      persistence.Store
	tickets    Tickets
	issuer     *auth.Issuer
	admin      auth.AdminChecker
	normalizer *answer.Normalizer
	summarizer *extractor.Guard
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	version    string
	logger     *logx.Logger
}

// New creates a server. Zero-valued limits in deps.Config fall back to config.Default.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Chat == nil:
		return nil, errors.New("server: chat engine is required")
	case deps.Store == nil:
		return nil, errors.New("server: store is required")
	case deps.Tickets == nil:
		return nil, errors.New("server: ticketing client is required")
	case deps.Issuer == nil:
		return nil, errors.New("server: token issuer is required")
	}

	cfg := deps.Config
	defaults := config.Default().Server
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = defaults.AuthRateLimit
	}
	if cfg.AuthRateWindow <= 0 {
		cfg.AuthRateWindow = defaults.AuthRateWindow
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = defaults.MaxMessageChars
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = answer.NewNormalizer()
	}
	summarizer := deps.Summarizer
	if summarizer == nil {
		summarizer = extractor.NewGuard(nil, nil)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		cfg:        cfg,
		chat:       deps.Chat,
		store:      deps.Store,
		tickets:    deps.Tickets,
		issuer:     deps.Issuer,
		admin:      deps.Admin,
		normalizer: normalizer,
		summarizer: summarizer,
		metrics:    deps.Metrics,
		gatherer:   deps.Gatherer,
		version:    version,
		logger:     logx.NewLogger("server"),
	}, nil
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cors(s.cfg.CORSOrigins))
	r.Use(s.requestMetrics)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/chat/message", s.handleChatMessage)
		r.With(s.authRateLimit()).Post("/auth/client-code", s.handleClientCode)

		r.Group(func(r chi.Router) {
			r.Use(s.requireClient)
			r.Get("/client/profile", s.handleClientProfile)
			r.Get("/intake/options", s.handleIntakeOptions)
			r.Post("/intake/normalize-answer", s.handleNormalizeAnswer)
			r.Post("/intake/preview", s.handlePreview)
			r.Post("/intake/submit", s.handleSubmit)
		})

		r.Post("/admin/auth", s.handleAdminAuth)
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/client-profiles", s.handleListProfiles)
			r.Post("/client-profiles", s.handleUpsertProfile)
			r.Put("/client-profiles/{code}", s.handleUpdateProfile)
			r.Delete("/client-profiles/{code}", s.handleDeleteProfile)
			r.Get("/service-options", s.handleGetServiceOptions)
			r.Put("/service-options", s.handleSetServiceOptions)
			r.Get("/request-logs", s.handleRequestLogs)
			r.Post("/monday/verify", s.handleVerifyMonday)
			r.Get("/logs", s.handleLogs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting intake API on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down intake API")
	// The parent context is already cancelled, so shutdown gets a fresh deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	//nolint:contextcheck // parent context is cancelled
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}
