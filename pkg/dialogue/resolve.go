package dialogue

import (
	"context"
	"fmt"
	"strings"

	"intake/pkg/answer"
	"intake/pkg/catalog"
	"intake/pkg/extractor"
	"intake/pkg/metrics"
	"intake/pkg/session"
)

type verdict int

const (
	verdictReject verdict = iota
	verdictAccept
	verdictClarify
)

func (v verdict) String() string {
	switch v {
	case verdictAccept:
		return metrics.OutcomeAccept
	case verdictClarify:
		return metrics.OutcomeClarify
	default:
		return metrics.OutcomeReject
	}
}

// resolution is the outcome of hybrid field resolution.
type resolution struct {
	verdict    verdict
	value      any
	hasValue   bool
	confidence float64
	// question is the yes/no clarification text.
	question string
	// message and options guide a re-prompt after a rejection.
	message string
	options []string
	source  string
}

func (r resolution) valueText() string {
	return answer.ValueString(r.value)
}

// serviceField describes the service picker to the extractor.
func serviceField(options []string) extractor.Field {
	return catalog.Question{
		ID:       session.ServiceFieldID,
		Label:    "Service Type",
		Type:     catalog.TypeChoice,
		Required: true,
		Options:  options,
	}
}

// resolveService maps free text onto one of options.
func (e *Engine) resolveService(ctx context.Context, st *session.State, message string, options []string) resolution {
	selected, score := answer.MatchOption(message, options)
	if selected != "" && score >= RuleAcceptConfidence {
		return e.observed("service", resolution{verdict: verdictAccept, value: selected, hasValue: true, confidence: score, source: "rule"})
	}

	clientName := ""
	if st.Profile != nil {
		clientName = st.Profile.ClientName
	}
	out, err := e.extractor.Extract(ctx, serviceField(options), message, extractor.Context{"client_name": clientName})
	if err == nil {
		if value, isString := out.Value.(string); isString && contains(options, value) {
			if out.Confidence >= ExtractorAcceptConfidence && !out.NeedsClarification {
				return e.observed("service", resolution{verdict: verdictAccept, value: value, hasValue: true, confidence: out.Confidence, source: "extractor"})
			}
			if out.Confidence >= ClarifyConfidence {
				question := out.ClarificationQuestion
				if question == "" {
					question = fmt.Sprintf("Did you mean %q?", value)
				}
				return e.observed("service", resolution{verdict: verdictClarify, value: value, hasValue: true, confidence: out.Confidence, question: question, source: "extractor"})
			}
		}
		if out.NeedsClarification && strings.TrimSpace(out.ClarificationQuestion) != "" {
			return e.observed("service", resolution{verdict: verdictClarify, confidence: out.Confidence, question: out.ClarificationQuestion, source: "extractor"})
		}
	}

	if selected != "" && score >= ClarifyConfidence {
		return e.observed("service", resolution{
			verdict:    verdictClarify,
			value:      selected,
			hasValue:   true,
			confidence: score,
			question:   fmt.Sprintf("Did you mean %q?", selected),
			source:     "rule",
		})
	}
	return e.observed("service", resolution{verdict: verdictReject, options: options})
}

// resolveAnswer resolves message as the answer to q.
func (e *Engine) resolveAnswer(ctx context.Context, st *session.State, q catalog.Question, message string) resolution {
	kind := string(q.Type)
	rule := e.normalizer.Normalize(message, q)

	if rule.OK {
		// Free text and list fields never need the extractor once the rules accept them.
		if q.Type != catalog.TypeChoice && q.Type != catalog.TypeDate {
			return e.observed(kind, resolution{verdict: verdictAccept, value: rule.Value, hasValue: true, confidence: rule.Confidence, source: "rule"})
		}
		if rule.Confidence >= RuleAcceptConfidence {
			return e.observed(kind, resolution{verdict: verdictAccept, value: rule.Value, hasValue: true, confidence: rule.Confidence, source: "rule"})
		}
	}

	out, err := e.extractor.Extract(ctx, q, message, extractor.Context{
		"service_type":  st.ServiceType,
		"known_answers": st.Answers.Clone(),
		"current_phase": string(st.Phase),
	})
	if err == nil {
		if value, ok := e.normalizeCandidate(q, out.Value); ok {
			if out.Confidence >= ExtractorAcceptConfidence && !out.NeedsClarification {
				return e.observed(kind, resolution{verdict: verdictAccept, value: value, hasValue: true, confidence: out.Confidence, source: "extractor"})
			}
			if out.Confidence >= ClarifyConfidence || out.NeedsClarification {
				question := out.ClarificationQuestion
				if question == "" {
					question = clarificationText(q, answer.ValueString(value))
				}
				return e.observed(kind, resolution{verdict: verdictClarify, value: value, hasValue: true, confidence: out.Confidence, question: question, source: "extractor"})
			}
		}
	}

	if rule.OK && rule.Confidence >= ClarifyConfidence {
		return e.observed(kind, resolution{
			verdict:    verdictClarify,
			value:      rule.Value,
			hasValue:   true,
			confidence: rule.Confidence,
			question:   clarificationText(q, rule.Text()),
			source:     "rule",
		})
	}

	if q.Type == catalog.TypeDate {
		return e.observed(kind, resolution{verdict: verdictReject, message: replyDateHint, options: []string{}})
	}
	message = rule.Message
	if message == "" {
		message = replyRephrase
	}
	return e.observed(kind, resolution{verdict: verdictReject, message: message, options: rule.Options})
}

// normalizeCandidate coerces an extractor value into the shape the field stores.
func (e *Engine) normalizeCandidate(q catalog.Question, value any) (any, bool) {
	if q.ID == "references" || q.ID == "uploaded_files" {
		switch v := value.(type) {
		case nil:
			return []string{}, !q.Required
		case []string:
			return nonBlankTrimmed(v), true
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			return nonBlankTrimmed(items), true
		default:
			return nonBlankTrimmed(strings.Split(fmt.Sprint(v), ",")), true
		}
	}

	if q.Type == catalog.TypeChoice || q.Type == catalog.TypeDate {
		text, isString := value.(string)
		if !isString {
			return nil, false
		}
		r := e.normalizer.Normalize(text, q)
		if !r.OK {
			return nil, false
		}
		return r.Value, true
	}

	switch v := value.(type) {
	case nil:
		return "", !q.Required
	case string, bool, int, int64, float64:
		return strings.TrimSpace(fmt.Sprint(v)), true
	default:
		return nil, false
	}
}

func (e *Engine) observed(kind string, r resolution) resolution {
	e.metrics.ObserveResolution(kind, r.verdict.String())
	return r
}

func nonBlankTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
