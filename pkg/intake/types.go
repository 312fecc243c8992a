// Package intake defines the client profile, the submission payload and the request log
// record, and assembles payloads and fallback summaries from collected answers.
package intake

import (
	"strings"
	"time"
)

// Profile is a client's account record, looked up by client code.
type Profile struct {
	ClientCode          string         `json:"client_code"`
	ClientName          string         `json:"client_name"`
	BrandVoiceRules     string         `json:"brand_voice_rules"`
	WordsToAvoid        []string       `json:"words_to_avoid"`
	RequiredDisclaimers string         `json:"required_disclaimers,omitempty"`
	PreferredTone       string         `json:"preferred_tone,omitempty"`
	CommonAudiences     []string       `json:"common_audiences"`
	DefaultApprover     string         `json:"default_approver,omitempty"`
	SubscriptionTier    string         `json:"subscription_tier,omitempty"`
	CreditMenu          map[string]int `json:"credit_menu"`
	TurnaroundRules     string         `json:"turnaround_rules,omitempty"`
	ComplianceNotes     string         `json:"compliance_notes,omitempty"`
	ServiceOptions      []string       `json:"service_options"`
}

// NormalizeCode canonicalizes a client code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Clone returns a deep copy so callers can hand profiles across goroutines.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.WordsToAvoid = append([]string{}, p.WordsToAvoid...)
	c.CommonAudiences = append([]string{}, p.CommonAudiences...)
	c.ServiceOptions = append([]string{}, p.ServiceOptions...)
	c.CreditMenu = make(map[string]int, len(p.CreditMenu))
	for k, v := range p.CreditMenu {
		c.CreditMenu[k] = v
	}
	return &c
}

// Payload is the validated submission built from a completed intake.
type Payload struct {
	ServiceType      string         `json:"service_type"`
	ProjectTitle     string         `json:"project_title"`
	Goal             string         `json:"goal"`
	TargetAudience   string         `json:"target_audience"`
	PrimaryCTA       string         `json:"primary_cta"`
	TimeSensitivity  string         `json:"time_sensitivity"`
	DueDate          string         `json:"due_date"`
	Approver         string         `json:"approver,omitempty"`
	RequiredElements string         `json:"required_elements,omitempty"`
	References       []string       `json:"references"`
	UploadedFiles    []string       `json:"uploaded_files"`
	BranchAnswers    map[string]any `json:"branch_answers"`
	Notes            string         `json:"notes,omitempty"`
}

// RequestRecord is one entry of the append-only request log.
type RequestRecord struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ClientCode   string    `json:"client_code"`
	ClientName   string    `json:"client_name"`
	ServiceType  string    `json:"service_type"`
	ProjectTitle string    `json:"project_title"`
	Summary      string    `json:"summary"`
	TicketID     string    `json:"monday_item_id,omitempty"`
	Payload      Payload   `json:"payload"`
}

// NewRequestRecord builds an unsaved log record. The sink assigns ID and CreatedAt.
func NewRequestRecord(profile *Profile, payload *Payload, summary, ticketID string) RequestRecord {
	return RequestRecord{
		ClientCode:   profile.ClientCode,
		ClientName:   profile.ClientName,
		ServiceType:  payload.ServiceType,
		ProjectTitle: payload.ProjectTitle,
		Summary:      summary,
		TicketID:     ticketID,
		Payload:      *payload,
	}
}
