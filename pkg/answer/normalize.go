// Package answer turns free-form chat replies into typed intake values.
//
// Normalization is deterministic: choice matching, date parsing, link and file extraction,
// client code detection, and free-text cleanup. Every verdict carries a confidence score that
// the dialogue engine compares against its accept and clarify thresholds.
package answer

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"intake/pkg/catalog"
)

// Rejection messages.
const (
	MsgRequired      = "I need a response for this item before I can continue."
	MsgChooseOption  = "Please choose one of the available options."
	MsgInvalidDate   = "Please provide a valid date. Use YYYY-MM-DD or natural format like March 5, 2026."
	MsgNoClientCode  = "I could not detect a valid client code in that response."
	confidenceDate   = 0.95
	confidenceCode   = 0.95
	confidenceList   = 0.9
	confidenceClean  = 0.9
	confidenceRaw    = 0.8
	confidenceSkip   = 1.0
	entityCandidates = "client_code_candidates"
	entityValues     = "values_found"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://[^\s,;]+`)
	filePattern  = regexp.MustCompile(`(?i)\b[^\s,;]+\.(?:pdf|docx?|pptx?|xlsx?|csv|png|jpe?g|gif|zip|txt)\b`)
	listSplit    = regexp.MustCompile(`[,\n;]`)
	genericLabel = regexp.MustCompile(`(?i)^(?:my|our|the)\s+[a-z0-9_\s-]{2,40}\s+(?:is|are|=|:)\s*`)
)

// Result is the verdict for one answer.
type Result struct {
	OK            bool           `json:"ok"`
	Value         any            `json:"normalized_value"`
	MatchedOption string         `json:"matched_option,omitempty"`
	Confidence    float64        `json:"confidence"`
	Message       string         `json:"message,omitempty"`
	Options       []string       `json:"options"`
	Entities      map[string]any `json:"entities"`
}

// Text returns the value as a string, joining list values with ", ".
func (r Result) Text() string {
	return ValueString(r.Value)
}

// Normalizer applies the normalization rules. The zero value uses the wall clock.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock fixes the notion of "today" for relative dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer returns a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) clock() time.Time {
	if n == nil || n.now == nil {
		return time.Now()
	}
	return n.now()
}

// Normalize applies the rules for q to text.
func (n *Normalizer) Normalize(text string, q catalog.Question) Result {
	raw := strings.TrimSpace(text)

	if !q.Required && (raw == "" || IsSkip(raw)) {
		return ok("", confidenceSkip)
	}
	if q.Required && raw == "" {
		return fail(MsgRequired, q.Options)
	}

	switch q.Type {
	case catalog.TypeChoice:
		matched, score := MatchOption(raw, q.Options)
		if matched == "" {
			return fail(MsgChooseOption, q.Options)
		}
		r := ok(matched, math.Round(score*100)/100)
		r.MatchedOption = matched
		return r
	case catalog.TypeDate:
		parsed, found := ParseDate(raw, n.clock())
		if !found {
			return fail(MsgInvalidDate, nil)
		}
		return ok(parsed, confidenceDate)
	}

	switch strings.ToLower(q.ID) {
	case "client_code", "client_id":
		candidates := ExtractCodeCandidates(raw)
		if len(candidates) == 0 {
			return fail(MsgNoClientCode, nil)
		}
		r := ok(candidates[0], confidenceCode)
		r.Entities[entityCandidates] = candidates
		return r
	case "references", "uploaded_files":
		values := ParseLinksAndFiles(raw)
		r := ok(values, confidenceList)
		r.Entities[entityValues] = len(values)
		return r
	}

	cleaned := CleanFieldPrefix(raw, q.ID, q.Label)
	if cleaned != raw {
		return ok(cleaned, confidenceClean)
	}
	return ok(cleaned, confidenceRaw)
}

var defaultNormalizer = NewNormalizer()

// Normalize applies the rules for q using the wall clock.
func Normalize(text string, q catalog.Question) Result {
	return defaultNormalizer.Normalize(text, q)
}

func ok(value any, confidence float64) Result {
	return Result{OK: true, Value: value, Confidence: confidence, Options: []string{}, Entities: map[string]any{}}
}

func fail(message string, options []string) Result {
	if options == nil {
		options = []string{}
	}
	return Result{OK: false, Message: message, Options: options, Entities: map[string]any{}}
}

// ParseList splits on commas, semicolons and newlines, dropping blanks.
func ParseList(text string) []string {
	out := []string{}
	for _, part := range listSplit.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseLinksAndFiles extracts URLs and file names, falling back to list splitting.
func ParseLinksAndFiles(text string) []string {
	extracted := append(urlPattern.FindAllString(text, -1), filePattern.FindAllString(text, -1)...)
	if len(extracted) > 0 {
		return Dedupe(extracted)
	}
	return ParseList(text)
}

// CleanFieldPrefix strips a leading "my <field> is" style preamble from a free-text answer.
func CleanFieldPrefix(text, fieldID, label string) string {
	value := strings.TrimSpace(text)
	if value == "" {
		return value
	}

	tokens := []string{strings.TrimSpace(strings.ReplaceAll(fieldID, "_", " "))}
	if label != "" {
		tokens = append(tokens, NormalizeText(label))
	}

	for _, token := range tokens {
		if token == "" {
			continue
		}
		pattern := regexp.MustCompile(`(?i)^(?:(?:my|our|the)\s+)?` + regexp.QuoteMeta(token) + `\b\s*(?:is|are|=|:)?\s*`)
		updated := strings.TrimSpace(pattern.ReplaceAllString(value, ""))
		if updated != "" && updated != value {
			return updated
		}
	}

	if updated := strings.TrimSpace(genericLabel.ReplaceAllString(value, "")); updated != "" {
		return updated
	}
	return value
}

// ValueString renders an answer value for prompts and summaries.
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
