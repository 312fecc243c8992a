package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intake/pkg/intake"
	"intake/pkg/logx"
)

// Observer receives one event per guarded call.
type Observer interface {
	ObserveExtractor(operation, outcome string)
}

// Operation names reported to the Observer.
const (
	OpExtract        = "extract"
	OpGeneratePrompt = "generate_prompt"
	OpSummarize      = "summarize"
	OpRefineReply    = "refine_reply"
)

// Guard wraps a Capability so callers only ever see a result or ErrUnavailable.
type Guard struct {
	inner    Capability
	logger   *logx.Logger
	observer Observer
}

var _ Capability = (*Guard)(nil)

// NewGuard wraps inner. A nil inner behaves like Null. observer may be nil.
func NewGuard(inner Capability, observer Observer) *Guard {
	if inner == nil {
		inner = Null{}
	}
	return &Guard{inner: inner, logger: logx.NewLogger("extractor"), observer: observer}
}

// Enabled reports whether a real backend sits behind the guard.
func (g *Guard) Enabled() bool {
	_, isNull := g.inner.(Null)
	return !isNull
}

func (g *Guard) Extract(ctx context.Context, f Field, text string, c Context) (out Extraction, err error) {
	defer g.recover(OpExtract, &err)
	out, err = g.inner.Extract(ctx, f, text, c)
	if err == nil && !out.OK {
		err = fmt.Errorf("%w: model declined %s", ErrUnavailable, f.ID)
	}
	if err != nil {
		return Extraction{}, g.fail(ctx, OpExtract, err)
	}
	g.observe(OpExtract, "success")
	return out, nil
}

func (g *Guard) GeneratePrompt(ctx context.Context, f Field, known Context, remaining []string) (out string, err error) {
	defer g.recover(OpGeneratePrompt, &err)
	out, err = g.inner.GeneratePrompt(ctx, f, known, remaining)
	return g.text(ctx, OpGeneratePrompt, out, err)
}

func (g *Guard) Summarize(ctx context.Context, profile *intake.Profile, payload *intake.Payload, fallback string) (out string, err error) {
	defer g.recover(OpSummarize, &err)
	out, err = g.inner.Summarize(ctx, profile, payload, fallback)
	return g.text(ctx, OpSummarize, out, err)
}

func (g *Guard) RefineReply(ctx context.Context, fallback, phase string, hints Context) (out string, err error) {
	defer g.recover(OpRefineReply, &err)
	out, err = g.inner.RefineReply(ctx, fallback, phase, hints)
	return g.text(ctx, OpRefineReply, out, err)
}

// ReplyOr returns the refined reply, or fallback when refinement is unavailable.
func (g *Guard) ReplyOr(ctx context.Context, fallback, phase string, hints Context) string {
	refined, err := g.RefineReply(ctx, fallback, phase, hints)
	if err != nil {
		return fallback
	}
	return refined
}

func (g *Guard) text(ctx context.Context, op, out string, err error) (string, error) {
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = fmt.Errorf("%w: empty %s result", ErrUnavailable, op)
	}
	if err != nil {
		return "", g.fail(ctx, op, err)
	}
	g.observe(op, "success")
	return out, nil
}

func (g *Guard) fail(ctx context.Context, op string, err error) error {
	g.observe(op, "unavailable")
	if _, isNull := g.inner.(Null); !isNull {
		g.logger.FromContext(ctx).Warn("%s unavailable: %v", op, err)
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (g *Guard) recover(op string, err *error) {
	if r := recover(); r != nil {
		g.observe(op, "unavailable")
		g.logger.Error("%s panicked: %v", op, r)
		*err = fmt.Errorf("%w: panic in %s", ErrUnavailable, op)
	}
}

func (g *Guard) observe(op, outcome string) {
	if g.observer != nil {
		g.observer.ObserveExtractor(op, outcome)
	}
}
