package server

import (
	"errors"
	"net/http"
	"strings"

	"intake/pkg/answer"
	"intake/pkg/dialogue"
	"intake/pkg/intake"
	"intake/pkg/persistence"
)

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Reset     bool   `json:"reset"`
}

type clientCodeRequest struct {
	ClientCode string `json:"client_code"`
}

type clientCodeResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Profile     *intake.Profile `json:"profile"`
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// handleChatMessage implements POST /api/v1/chat/message.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !checkLength(w, "message", req.Message, 0, s.cfg.MaxMessageChars) {
		return
	}

	resp, err := s.chat.HandleMessage(r.Context(), dialogue.Request{
		SessionID: strings.TrimSpace(req.SessionID),
		Message:   req.Message,
		Reset:     req.Reset,
	})
	if err != nil {
		s.logger.Error("Chat turn failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Chat session is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClientCode implements POST /api/v1/auth/client-code. The raw input and every code
// found inside it are tried in order.
func (s *Server) handleClientCode(w http.ResponseWriter, r *http.Request) {
	var req clientCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !checkLength(w, "client_code", req.ClientCode, 3, 64) {
		return
	}

	raw := strings.TrimSpace(req.ClientCode)
	candidates := append([]string{raw}, answer.ExtractCodeCandidates(raw)...)

	var profile *intake.Profile
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		code := intake.NormalizeCode(candidate)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		p, err := s.store.GetProfile(r.Context(), code)
		if errors.Is(err, persistence.ErrProfileNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("Profile lookup for %s failed: %v", code, err)
			writeError(w, http.StatusInternalServerError, "Profile lookup failed")
			return
		}
		profile = p
		break
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Invalid client code")
		return
	}

	token, err := s.issuer.Issue(profile.ClientCode, profile.ClientName)
	if err != nil {
		s.logger.Error("Failed to issue token for %s: %v", profile.ClientCode, err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	s.logger.Info("Client %s logged in", profile.ClientCode)
	writeJSON(w, http.StatusOK, clientCodeResponse{AccessToken: token, TokenType: "bearer", Profile: profile})
}
