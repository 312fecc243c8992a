// Package extractor is the semantic side of answer resolution: structured extraction of a
// field value from free text, question phrasing, summaries and reply polishing.
//
// Every operation is optional. The dialogue engine only talks to a Guard, which turns any
// provider error, panic or empty result into ErrUnavailable so callers can fall back to
// their deterministic text.
package extractor

import (
	"context"
	"errors"

	"intake/pkg/catalog"
	"intake/pkg/intake"
)

// ErrUnavailable reports that the capability produced no usable result.
var ErrUnavailable = errors.New("semantic extractor unavailable")

// Field is the question an extraction targets. The service picker is expressed as a
// required choice field with id "service_type".
type Field = catalog.Question

// Context carries extra facts for the model, such as the client name or known answers.
type Context map[string]any

// Extraction is the model's verdict for one answer.
type Extraction struct {
	OK                    bool    `json:"ok"`
	Value                 any     `json:"value"`
	Confidence            float64 `json:"confidence"`
	NeedsClarification    bool    `json:"needs_clarification"`
	ClarificationQuestion string  `json:"clarification_question,omitempty"`
}

// Capability is implemented by every extractor backend.
type Capability interface {
	// Extract interprets text as an answer to f.
	Extract(ctx context.Context, f Field, text string, c Context) (Extraction, error)
	// GeneratePrompt phrases the question for f. remaining lists upcoming question labels.
	GeneratePrompt(ctx context.Context, f Field, known Context, remaining []string) (string, error)
	// Summarize writes a contractor-ready summary of the request.
	Summarize(ctx context.Context, profile *intake.Profile, payload *intake.Payload, fallback string) (string, error)
	// RefineReply rephrases a deterministic reply for the current phase.
	RefineReply(ctx context.Context, fallback, phase string, hints Context) (string, error)
}

// Null is the capability used when no model is configured. Every call is unavailable.
type Null struct{}

var _ Capability = Null{}

func (Null) Extract(context.Context, Field, string, Context) (Extraction, error) {
	return Extraction{}, ErrUnavailable
}

func (Null) GeneratePrompt(context.Context, Field, Context, []string) (string, error) {
	return "", ErrUnavailable
}

func (Null) Summarize(context.Context, *intake.Profile, *intake.Payload, string) (string, error) {
	return "", ErrUnavailable
}

func (Null) RefineReply(context.Context, string, string, Context) (string, error) {
	return "", ErrUnavailable
}
