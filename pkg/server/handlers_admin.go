package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/pkg/intake"
	"intake/pkg/logx"
	"intake/pkg/persistence"
	"intake/pkg/ticketing"
)

const maxLogEntries = 1000

type adminAuthRequest struct {
	Password string `json:"password"`
}

type serviceOptionsUpdate struct {
	Options []string `json:"options"`
}

// handleAdminAuth implements POST /api/v1/admin/auth.
func (s *Server) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	var req adminAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.admin.Valid(req.Password) {
		writeError(w, http.StatusUnauthorized, detailBadAdmin)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleListProfiles implements GET /api/v1/admin/client-profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		s.logger.Error("Failed to list profiles: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list client profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
	s.logger.Debug("Served %d client profiles", len(profiles))
}

// handleUpsertProfile implements POST /api/v1/admin/client-profiles.
func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var p intake.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	s.saveProfile(w, r, &p)
}

// handleUpdateProfile implements PUT /api/v1/admin/client-profiles/{code}.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p intake.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.ClientCode != chi.URLParam(r, "code") {
		writeError(w, http.StatusBadRequest, "Path code must match payload code")
		return
	}
	s.saveProfile(w, r, &p)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request, p *intake.Profile) {
	err := s.store.UpsertProfile(r.Context(), p)
	if errors.Is(err, persistence.ErrInvalidProfile) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("Failed to save profile %s: %v", p.ClientCode, err)
		writeError(w, http.StatusInternalServerError, "Failed to save client profile")
		return
	}

	saved, err := s.store.GetProfile(r.Context(), p.ClientCode)
	if err != nil {
		s.logger.Error("Failed to reload profile %s: %v", p.ClientCode, err)
		writeError(w, http.StatusInternalServerError, "Failed to load client profile")
		return
	}
	s.logger.Info("Client profile %s saved", saved.ClientCode)
	writeJSON(w, http.StatusOK, saved)
}

// handleDeleteProfile implements DELETE /api/v1/admin/client-profiles/{code}.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	code := intake.NormalizeCode(chi.URLParam(r, "code"))
	err := s.store.DeleteProfile(r.Context(), code)
	if errors.Is(err, persistence.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Client profile not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to delete profile %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete client profile")
		return
	}
	s.logger.Info("Client profile %s deleted", code)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetServiceOptions implements GET /api/v1/admin/service-options.
func (s *Server) handleGetServiceOptions(w http.ResponseWriter, r *http.Request) {
	options, err := s.store.ListServiceOptions(r.Context())
	if err != nil {
		s.logger.Error("Failed to list service options: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list service options")
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// handleSetServiceOptions implements PUT /api/v1/admin/service-options.
func (s *Server) handleSetServiceOptions(w http.ResponseWriter, r *http.Request) {
	var req serviceOptionsUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.store.SetServiceOptions(r.Context(), req.Options)
	if errors.Is(err, persistence.ErrNoServiceOptions) {
		writeError(w, http.StatusBadRequest, "At least one service option is required")
		return
	}
	if err != nil {
		s.logger.Error("Failed to set service options: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save service options")
		return
	}
	s.handleGetServiceOptions(w, r)
}

// handleRequestLogs implements GET /api/v1/admin/request-logs?limit=N.
func (s *Server) handleRequestLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	records, err := s.store.ListRequestLogs(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list request logs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list request logs")
		return
	}
	writeJSON(w, http.StatusOK, records)
	s.logger.Debug("Served %d request log records", len(records))
}

// handleVerifyMonday implements POST /api/v1/admin/monday/verify.
func (s *Server) handleVerifyMonday(w http.ResponseWriter, r *http.Request) {
	var req ticketing.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.tickets.VerifyCredentials(r.Context(), req))
}

// handleLogs implements GET /api/v1/admin/logs?domain=&since=.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	domain := strings.TrimSpace(query.Get("domain"))
	sinceStr := query.Get("since")

	var since time.Time
	if sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.logger.Warn("Invalid since parameter: %s", sinceStr)
			writeError(w, http.StatusBadRequest, "Invalid since parameter (use RFC3339)")
			return
		}
		since = parsed
	}

	logs := logx.GetRecentLogEntries(domain, since)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp < logs[j].Timestamp
	})
	if len(logs) > maxLogEntries {
		logs = logs[len(logs)-maxLogEntries:]
	}

	writeJSON(w, http.StatusOK, logs)
	s.logger.Debug("Served %d log entries (domain=%s, since=%s)", len(logs), domain, sinceStr)
}
