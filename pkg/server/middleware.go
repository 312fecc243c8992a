package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"intake/pkg/auth"
)

const (
	detailRateLimited  = "Too many requests. Please retry shortly."
	detailMissingToken = "Missing bearer token"
	detailBadToken     = "Invalid or expired token"
	detailWrongRole    = "Invalid token role"
	detailBadAdmin     = "Invalid admin password"
)

type claimsKey struct{}

func withClaims(ctx context.Context, c auth.ClientClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// claimsFrom returns the client claims stored by requireClient.
func claimsFrom(ctx context.Context) auth.ClientClaims {
	c, _ := ctx.Value(claimsKey{}).(auth.ClientClaims)
	return c
}

// cors sets Cross-Origin Resource Sharing headers for the configured origins. "*" allows
// every origin.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Request-ID, X-Admin-Key, X-Admin-Password")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestMetrics records status and latency per route pattern.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTP(route, r.Method, sw.status, time.Since(start))
	})
}

// authRateLimit bounds client-code login attempts per IP.
func (s *Server) authRateLimit() func(http.Handler) http.Handler {
	window := s.cfg.AuthRateWindow
	return httprate.Limit(
		s.cfg.AuthRateLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("Client-code rate limit hit from %s", r.RemoteAddr)
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, detailRateLimited)
		}),
	)
}

// requireClient admits requests carrying a valid client bearer token.
func (s *Server) requireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			writeError(w, http.StatusUnauthorized, detailMissingToken)
			return
		}

		claims, err := s.issuer.Verify(token)
		switch {
		case errors.Is(err, auth.ErrWrongRole):
			writeError(w, http.StatusForbidden, detailWrongRole)
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, detailBadToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// requireAdmin admits requests carrying the admin password or key header.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Admin-Password")
		if secret == "" {
			secret = r.Header.Get("X-Admin-Key")
		}
		if !s.admin.Valid(secret) {
			writeError(w, http.StatusUnauthorized, detailBadAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}
