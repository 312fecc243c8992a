package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"intake/pkg/catalog"
)

const (
	isoDate = "2006-01-02"

	// minDueYear rejects dates whose year was lost in parsing (0000-03-05).
	minDueYear = 1900
)

// Answers maps question ids to normalized values: strings, or string lists for
// references and attachments.
type Answers map[string]any

// NewAnswers starts an intake cycle with the profile's default approver.
func NewAnswers(defaultApprover string) Answers {
	return Answers{"approver": defaultApprover}
}

// String returns the answer as text. Lists are joined with ", ".
func (a Answers) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(v, ", ")
	case []any:
		return strings.Join(coerceList(v), ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// List returns the answer as a list, splitting scalar text on commas.
func (a Answers) List(key string) []string {
	return coerceList(a[key])
}

// Clone returns a shallow copy with list values copied.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if list, ok := v.([]string); ok {
			v = append([]string{}, list...)
		}
		out[k] = v
	}
	return out
}

func coerceList(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case nil:
	case []string:
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
	default:
		for _, part := range strings.Split(fmt.Sprint(v), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

// ErrInvalidPayload is matched by every *ValidationError.
var ErrInvalidPayload = errors.New("invalid intake payload")

// FieldError names one invalid payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found while assembling a payload.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid intake payload: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPayload
}

var requiredCore = []string{"project_title", "goal", "target_audience", "primary_cta", "due_date"}

// BuildPayload assembles and validates a submission. Answers outside the core field set go
// into BranchAnswers, skipping empty values.
func BuildPayload(serviceType string, answers Answers) (*Payload, error) {
	var problems []FieldError

	if strings.TrimSpace(serviceType) == "" {
		problems = append(problems, FieldError{Field: "service_type", Message: "service type is missing"})
	}
	for _, field := range requiredCore {
		if answers.String(field) == "" {
			problems = append(problems, FieldError{Field: field, Message: "required"})
		}
	}

	urgency := catalog.UrgencyStandard
	if raw := answers.String("time_sensitivity"); raw != "" {
		urgency = ""
		for _, level := range catalog.UrgencyLevels {
			if strings.EqualFold(raw, level) {
				urgency = level
			}
		}
		if urgency == "" {
			problems = append(problems, FieldError{
				Field:   "time_sensitivity",
				Message: fmt.Sprintf("must be one of %s", strings.Join(catalog.UrgencyLevels, ", ")),
			})
		}
	}

	dueDate := answers.String("due_date")
	if dueDate != "" {
		parsed, err := time.Parse(isoDate, dueDate)
		switch {
		case err != nil:
			problems = append(problems, FieldError{Field: "due_date", Message: "must be a YYYY-MM-DD date"})
		case parsed.Year() < minDueYear:
			problems = append(problems, FieldError{Field: "due_date", Message: fmt.Sprintf("year must be %d or later", minDueYear)})
		default:
			dueDate = parsed.Format(isoDate)
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}

	branch := map[string]any{}
	for key, value := range answers {
		if catalog.CoreFields[key] || isEmptyValue(value) {
			continue
		}
		branch[key] = value
	}

	return &Payload{
		ServiceType:      serviceType,
		ProjectTitle:     answers.String("project_title"),
		Goal:             answers.String("goal"),
		TargetAudience:   answers.String("target_audience"),
		PrimaryCTA:       answers.String("primary_cta"),
		TimeSensitivity:  urgency,
		DueDate:          dueDate,
		Approver:         answers.String("approver"),
		RequiredElements: answers.String("required_elements"),
		References:       answers.List("references"),
		UploadedFiles:    answers.List("uploaded_files"),
		BranchAnswers:    branch,
		Notes:            answers.String("notes"),
	}, nil
}

// Validate re-checks a payload received from outside the dialogue, such as the direct
// submit endpoint, and fills the same defaults BuildPayload would.
func (p *Payload) Validate() error {
	answers := Answers{
		"project_title":     p.ProjectTitle,
		"goal":              p.Goal,
		"target_audience":   p.TargetAudience,
		"primary_cta":       p.PrimaryCTA,
		"time_sensitivity":  p.TimeSensitivity,
		"due_date":          p.DueDate,
		"approver":          p.Approver,
		"required_elements": p.RequiredElements,
		"references":        p.References,
		"uploaded_files":    p.UploadedFiles,
		"notes":             p.Notes,
	}
	for k, v := range p.BranchAnswers {
		if !catalog.CoreFields[k] {
			answers[k] = v
		}
	}
	built, err := BuildPayload(p.ServiceType, answers)
	if err != nil {
		return err
	}
	*p = *built
	return nil
}
