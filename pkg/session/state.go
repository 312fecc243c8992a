// Package session holds per-conversation intake state and the stores that keep it between
// turns.
package session

import (
	"time"

	"github.com/google/uuid"

	"intake/pkg/catalog"
	"intake/pkg/intake"
)

// Phase is the conversation's position in the intake flow.
type Phase string

const (
	PhaseAwaitClientCode   Phase = "await_client_code"
	PhaseAwaitService      Phase = "await_service"
	PhaseAwaitQuestion     Phase = "await_question"
	PhaseAwaitConfirmation Phase = "await_confirmation"
	PhaseDone              Phase = "done"
)

// ServiceFieldID is the pending-clarification field id used while picking a service.
const ServiceFieldID = "service_type"

// Clarification is a candidate value waiting for the user's yes or no.
type Clarification struct {
	FieldID    string  `json:"field_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Question   string  `json:"question,omitempty"`
}

// State is everything the engine remembers about one conversation.
type State struct {
	SessionID          string             `json:"session_id"`
	Phase              Phase              `json:"phase"`
	Profile            *intake.Profile    `json:"profile,omitempty"`
	ServiceType        string             `json:"service_type,omitempty"`
	Questions          []catalog.Question `json:"questions"`
	QuestionIndex      int                `json:"question_index"`
	Answers            intake.Answers     `json:"answers"`
	Pending            *Clarification     `json:"pending,omitempty"`
	Summary            string             `json:"summary,omitempty"`
	ClientCodeAttempts int                `json:"client_code_attempts"`
	ServiceAttempts    int                `json:"service_attempts"`
	UserName           string             `json:"user_name,omitempty"`
	TurnCount          int                `json:"turn_count"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewState returns a fresh conversation. An empty id gets a random uuid.
func NewState(id string) *State {
	if id == "" {
		id = uuid.NewString()
	}
	return &State{
		SessionID: id,
		Phase:     PhaseAwaitClientCode,
		Questions: []catalog.Question{},
		Answers:   intake.Answers{},
	}
}

// CurrentQuestion returns the question at QuestionIndex.
func (s *State) CurrentQuestion() (catalog.Question, bool) {
	if s.QuestionIndex < 0 || s.QuestionIndex >= len(s.Questions) {
		return catalog.Question{}, false
	}
	return s.Questions[s.QuestionIndex], true
}

// RemainingLabels returns up to limit labels after the current question.
func (s *State) RemainingLabels(limit int) []string {
	labels := []string{}
	for i := s.QuestionIndex + 1; i < len(s.Questions) && len(labels) < limit; i++ {
		if s.Questions[i].Label != "" {
			labels = append(labels, s.Questions[i].Label)
		}
	}
	return labels
}

// PendingFor returns the pending clarification when it targets fieldID.
func (s *State) PendingFor(fieldID string) (*Clarification, bool) {
	if s.Pending == nil || s.Pending.FieldID != fieldID {
		return nil, false
	}
	return s.Pending, true
}

// ResetIntake starts a new intake cycle for the authenticated client, or returns to the
// client code step when there is none.
func (s *State) ResetIntake() {
	s.Phase = PhaseAwaitClientCode
	approver := ""
	if s.Profile != nil {
		s.Phase = PhaseAwaitService
		approver = s.Profile.DefaultApprover
	}
	s.ServiceType = ""
	s.Questions = []catalog.Question{}
	s.QuestionIndex = 0
	s.Answers = intake.NewAnswers(approver)
	s.Pending = nil
	s.Summary = ""
	s.ClientCodeAttempts = 0
	s.ServiceAttempts = 0
}

// Clone returns a deep copy. Stores hand out clones so a turn never mutates shared state
// until it saves.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Profile = s.Profile.Clone()
	c.Questions = append([]catalog.Question{}, s.Questions...)
	c.Answers = s.Answers.Clone()
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return &c
}

// normalizeDecoded restores []string answer values after a JSON round trip.
func (s *State) normalizeDecoded() {
	if s.Answers == nil {
		s.Answers = intake.Answers{}
	}
	for k, v := range s.Answers {
		s.Answers[k] = stringList(v)
	}
	if s.Pending != nil {
		s.Pending.Value = stringList(s.Pending.Value)
	}
	if s.Questions == nil {
		s.Questions = []catalog.Question{}
	}
}

func stringList(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isString := item.(string); isString {
			out = append(out, s)
		}
	}
	return out
}
