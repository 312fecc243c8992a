package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"intake/pkg/catalog"
	"intake/pkg/intake"
	"intake/pkg/metrics"
	"intake/pkg/persistence"
	"intake/pkg/ticketing"
)

type intakeOptionsResponse struct {
	ServiceOptions  []string                      `json:"service_options"`
	CoreQuestions   []catalog.Question            `json:"core_questions"`
	BranchQuestions map[string][]catalog.Question `json:"branch_questions"`
}

type normalizeAnswerRequest struct {
	QuestionID    string   `json:"question_id"`
	QuestionType  string   `json:"question_type"`
	AnswerText    string   `json:"answer_text"`
	Required      *bool    `json:"required"`
	Options       []string `json:"options"`
	QuestionLabel string   `json:"question_label"`
}

type previewResponse struct {
	Summary string `json:"summary"`
}

type submitResponse struct {
	RequestID string           `json:"request_id"`
	Summary   string           `json:"summary"`
	Monday    ticketing.Result `json:"monday"`
}

// currentProfile loads the profile of the authenticated client, writing 404 or 500 on failure.
func (s *Server) currentProfile(w http.ResponseWriter, r *http.Request) (*intake.Profile, bool) {
	code := claimsFrom(r.Context()).ClientCode
	profile, err := s.store.GetProfile(r.Context(), code)
	if errors.Is(err, persistence.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Client profile not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("Profile lookup for %s failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Profile lookup failed")
		return nil, false
	}
	return profile, true
}

// handleClientProfile implements GET /api/v1/client/profile.
func (s *Server) handleClientProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.currentProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleIntakeOptions implements GET /api/v1/intake/options.
func (s *Server) handleIntakeOptions(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.currentProfile(w, r)
	if !ok {
		return
	}

	options := profile.ServiceOptions
	if len(options) == 0 {
		stored, err := s.store.ListServiceOptions(r.Context())
		if err != nil {
			s.logger.Error("Failed to list service options: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list service options")
			return
		}
		options = stored
	}
	writeJSON(w, http.StatusOK, intakeOptionsResponse{
		ServiceOptions:  options,
		CoreQuestions:   catalog.CoreQuestions(),
		BranchQuestions: catalog.BranchQuestions(),
	})
}

// handleNormalizeAnswer implements POST /api/v1/intake/normalize-answer.
func (s *Server) handleNormalizeAnswer(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentProfile(w, r); !ok {
		return
	}
	var req normalizeAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !checkLength(w, "question_id", req.QuestionID, 1, 120) ||
		!checkLength(w, "question_type", req.QuestionType, 1, 40) ||
		!checkLength(w, "answer_text", req.AnswerText, 0, 4000) {
		return
	}

	required := true
	if req.Required != nil {
		required = *req.Required
	}
	q := catalog.Question{
		ID:       req.QuestionID,
		Label:    req.QuestionLabel,
		Type:     catalog.QuestionType(strings.ToLower(strings.TrimSpace(req.QuestionType))),
		Required: required,
		Options:  req.Options,
	}
	writeJSON(w, http.StatusOK, s.normalizer.Normalize(req.AnswerText, q))
}

// preparePayload validates the submitted payload and fills the approver from the profile.
func preparePayload(w http.ResponseWriter, r *http.Request, profile *intake.Profile) (*intake.Payload, bool) {
	var payload intake.Payload
	if !decodeJSON(w, r, &payload) {
		return nil, false
	}
	if strings.TrimSpace(payload.Approver) == "" {
		payload.Approver = profile.DefaultApprover
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return &payload, true
}

func (s *Server) summarize(ctx context.Context, profile *intake.Profile, payload *intake.Payload) string {
	fallback := intake.FallbackSummary(profile, payload)
	summary, err := s.summarizer.Summarize(ctx, profile, payload, fallback)
	if err != nil {
		return fallback
	}
	return summary
}

// handlePreview implements POST /api/v1/intake/preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.currentProfile(w, r)
	if !ok {
		return
	}
	payload, ok := preparePayload(w, r, profile)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Summary: s.summarize(r.Context(), profile, payload)})
}

// handleSubmit implements POST /api/v1/intake/submit: summary, ticket, then the log record.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.currentProfile(w, r)
	if !ok {
		return
	}
	payload, ok := preparePayload(w, r, profile)
	if !ok {
		return
	}
	ctx := r.Context()

	summary := s.summarize(ctx, profile, payload)
	ticket, err := s.tickets.CreateItem(ctx, profile, payload, summary)
	if err != nil {
		s.logger.Warn("Ticket creation for %s failed: %v", profile.ClientCode, err)
		s.metrics.ObserveSubmission(metrics.OutcomeFailure, false)
		writeError(w, http.StatusBadGateway, "Failed to create Monday item: "+err.Error())
		return
	}

	rec, err := s.store.AppendRequestLog(ctx, intake.NewRequestRecord(profile, payload, summary, ticket.ItemID))
	if err != nil {
		s.logger.Error("Failed to record request for %s: %v", profile.ClientCode, err)
		s.metrics.ObserveSubmission(metrics.OutcomeFailure, ticket.MockMode)
		writeError(w, http.StatusInternalServerError, "Failed to record request")
		return
	}
	s.metrics.ObserveSubmission(metrics.OutcomeSuccess, ticket.MockMode)
	s.logger.Info("Request %s submitted for %s as item %s", rec.ID, profile.ClientCode, ticket.ItemID)

	writeJSON(w, http.StatusOK, submitResponse{RequestID: rec.ID, Summary: summary, Monday: ticket})
}
