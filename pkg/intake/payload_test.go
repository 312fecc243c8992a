package intake

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeAnswers() Answers {
	return Answers{
		"project_title":     "Spring Hiring Push",
		"goal":              "More applicants",
		"target_audience":   "job seekers",
		"primary_cta":       "Apply now",
		"time_sensitivity":  "Soon",
		"due_date":          "2026-03-06",
		"approver":          "Lupita R.",
		"required_elements": "EOE statement",
		"references":        "https://a.example, https://b.example",
		"uploaded_files":    []string{"brief.pdf"},
		"dimensions":        "1080x1080",
		"copy_provided":     "Yes",
		"accessibility":     "",
		"empty_list":        []string{},
	}
}

func TestBuildPayload(t *testing.T) {
	p, err := BuildPayload("Custom graphic", completeAnswers())
	require.NoError(t, err)

	want := &Payload{
		ServiceType:      "Custom graphic",
		ProjectTitle:     "Spring Hiring Push",
		Goal:             "More applicants",
		TargetAudience:   "job seekers",
		PrimaryCTA:       "Apply now",
		TimeSensitivity:  "Soon",
		DueDate:          "2026-03-06",
		Approver:         "Lupita R.",
		RequiredElements: "EOE statement",
		References:       []string{"https://a.example", "https://b.example"},
		UploadedFiles:    []string{"brief.pdf"},
		BranchAnswers:    map[string]any{"dimensions": "1080x1080", "copy_provided": "Yes"},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPayloadDefaultsUrgency(t *testing.T) {
	answers := completeAnswers()
	delete(answers, "time_sensitivity")

	p, err := BuildPayload("Other", answers)
	require.NoError(t, err)
	assert.Equal(t, "Standard", p.TimeSensitivity)
	assert.Empty(t, p.Notes)
}

func TestBuildPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		service string
		mutate  func(Answers)
		field   string
	}{
		{"missing service", "", func(Answers) {}, "service_type"},
		{"missing goal", "Other", func(a Answers) { delete(a, "goal") }, "goal"},
		{"blank title", "Other", func(a Answers) { a["project_title"] = "  " }, "project_title"},
		{"bad date", "Other", func(a Answers) { a["due_date"] = "next week" }, "due_date"},
		{"yearless date", "Other", func(a Answers) { a["due_date"] = "0000-03-05" }, "due_date"},
		{"ancient date", "Other", func(a Answers) { a["due_date"] = "1899-12-31" }, "due_date"},
		{"bad urgency", "Other", func(a Answers) { a["time_sensitivity"] = "Yesterday" }, "time_sensitivity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := completeAnswers()
			tt.mutate(answers)

			_, err := BuildPayload(tt.service, answers)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestAnswersListHandlesDecodedJSON(t *testing.T) {
	a := Answers{"references": []any{"x", " ", "y"}, "notes": 3}
	assert.Equal(t, []string{"x", "y"}, a.List("references"))
	assert.Equal(t, "x, y", a.String("references"))
	assert.Equal(t, "3", a.String("notes"))
	assert.Equal(t, []string{}, a.List("missing"))
}

func TestPayloadValidateCanonicalizes(t *testing.T) {
	p := &Payload{
		ServiceType:     "Press release",
		ProjectTitle:    "Launch",
		Goal:            "Coverage",
		TargetAudience:  "press",
		PrimaryCTA:      "Read more",
		TimeSensitivity: "urgent",
		DueDate:         "2026-04-01",
		BranchAnswers:   map[string]any{"media_targets": "trade press", "goal": "ignored"},
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, "Urgent", p.TimeSensitivity)
	assert.Equal(t, map[string]any{"media_targets": "trade press"}, p.BranchAnswers)
	assert.Equal(t, []string{}, p.References)
}

func TestFallbackSummary(t *testing.T) {
	p, err := BuildPayload("Custom graphic", completeAnswers())
	require.NoError(t, err)
	p.Approver = ""
	p.Notes = "Business impact: hiring freeze ends"

	summary := FallbackSummary(SampleProfile(), p)
	lines := strings.Split(summary, "\n")

	assert.Equal(t, "Client: ReadyOne Industries (READYONE01)", lines[0])
	assert.Contains(t, lines, "Deliverable: Custom graphic")
	assert.Contains(t, lines, "Approver: Lupita R.")
	assert.Contains(t, lines, "Links: https://a.example, https://b.example")
	assert.Contains(t, lines, "Files: brief.pdf")
	assert.Contains(t, lines, "Branch Details:")
	assert.Contains(t, lines, "- copy_provided: Yes")
	assert.Equal(t, "Notes: Business impact: hiring freeze ends", lines[len(lines)-1])
}

func TestFallbackSummaryPlaceholders(t *testing.T) {
	p := &Payload{ServiceType: "Other", TimeSensitivity: "Standard"}
	summary := FallbackSummary(&Profile{ClientCode: "X1"}, p)

	assert.Contains(t, summary, "Client: Unknown (X1)")
	assert.Contains(t, summary, "Approver: Not specified")
	assert.Contains(t, summary, "Required Elements: None specified")
	assert.Contains(t, summary, "Links: None provided")
	assert.Contains(t, summary, "Files: None")
	assert.NotContains(t, summary, "Branch Details")
}
