// Package dialogue runs the intake conversation: one inbound message in, one assistant
// reply out, with the conversation's state kept in a session.Store between turns.
//
// Each turn is routed by phase. Answers are resolved with the deterministic normalizer
// first and the semantic extractor only when the rules are not confident enough; every
// extractor failure degrades to the deterministic path. Submitting a confirmed request
// creates one ticket and appends one request log record.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intake/pkg/answer"
	"intake/pkg/catalog"
	"intake/pkg/extractor"
	"intake/pkg/intake"
	"intake/pkg/logx"
	"intake/pkg/metrics"
	"intake/pkg/session"
	"intake/pkg/ticketing"
)

// ProfileLookup resolves client codes. Missing codes return persistence.ErrProfileNotFound.
type ProfileLookup interface {
	GetProfile(ctx context.Context, code string) (*intake.Profile, error)
}

// ServiceOptionsSource lists the service options offered when a profile carries none.
type ServiceOptionsSource interface {
	ListServiceOptions(ctx context.Context) ([]string, error)
}

// TicketSink creates the external work item for a submitted request.
type TicketSink interface {
	CreateItem(ctx context.Context, profile *intake.Profile, payload *intake.Payload, summary string) (ticketing.Result, error)
}

// RecordSink is the append-only request log.
type RecordSink interface {
	AppendRequestLog(ctx context.Context, rec intake.RequestRecord) (intake.RequestRecord, error)
}

// Request is one inbound chat message.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	// Reset starts a fresh conversation, reusing SessionID when one is given.
	Reset bool `json:"reset"`
}

// Response is the engine's reply for one turn.
type Response struct {
	SessionID        string          `json:"session_id"`
	AssistantMessage string          `json:"assistant_message"`
	Phase            session.Phase   `json:"phase"`
	Suggestions      []string        `json:"suggestions"`
	Profile          *intake.Profile `json:"profile,omitempty"`
	ServiceType      string          `json:"service_type,omitempty"`
	ReadyToSubmit    bool            `json:"ready_to_submit"`
	Summary          string          `json:"summary,omitempty"`
	RequestID        string          `json:"request_id,omitempty"`
	TicketID         string          `json:"monday_item_id,omitempty"`
}

// Deps are the engine's collaborators. Sessions, Profiles, Tickets and Records are required.
type Deps struct {
	Sessions  session.Store
	Profiles  ProfileLookup
	Options   ServiceOptionsSource
	Tickets   TicketSink
	Records   RecordSink
	Extractor extractor.Capability
	Metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for relative dates, greetings and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocker shares a session locker between engines.
func WithLocker(l *session.Locker) Option {
	return func(e *Engine) { e.locks = l }
}

// Engine is the intake conversation state machine. It is safe for concurrent use; turns for
// the same session are serialized.
type Engine struct {
	sessions   session.Store
	locks      *session.Locker
	profiles   ProfileLookup
	options    ServiceOptionsSource
	tickets    TicketSink
	records    RecordSink
	extractor  *extractor.Guard
	normalizer *answer.Normalizer
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *logx.Logger
}

// New builds an Engine. A nil Extractor behaves as extractor.Null.
func New(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("dialogue: session store is required")
	case deps.Profiles == nil:
		return nil, errors.New("dialogue: profile lookup is required")
	case deps.Tickets == nil:
		return nil, errors.New("dialogue: ticket sink is required")
	case deps.Records == nil:
		return nil, errors.New("dialogue: record sink is required")
	}

	e := &Engine{
		sessions: deps.Sessions,
		locks:    session.NewLocker(),
		profiles: deps.Profiles,
		options:  deps.Options,
		tickets:  deps.Tickets,
		records:  deps.Records,
		metrics:  deps.Metrics,
		now:      time.Now,
		logger:   logx.NewLogger("dialogue"),
	}
	for _, opt := range opts {
		opt(e)
	}

	var observer extractor.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	e.extractor = extractor.NewGuard(deps.Extractor, observer)
	e.normalizer = answer.NewNormalizer(answer.WithClock(e.now))
	return e, nil
}

// HandleMessage processes one message and returns the assistant's reply. Errors are only
// returned when session state cannot be loaded or saved; everything else is a reply.
func (e *Engine) HandleMessage(ctx context.Context, req Request) (*Response, error) {
	if req.SessionID != "" {
		unlock := e.locks.Lock(req.SessionID)
		defer unlock()
	}

	st, err := e.load(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logx.ContextWithSessionID(ctx, st.SessionID)
	startPhase := st.Phase

	message := strings.TrimSpace(req.Message)
	st.TurnCount++

	resp := e.route(ctx, st, message, req.Reset)

	st.UpdatedAt = e.now().UTC()
	if err := e.sessions.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("save session %s: %w", st.SessionID, err)
	}
	e.metrics.ObserveTurn(string(startPhase))
	logx.DebugState(ctx, "dialogue", "turn", string(st.Phase), "from "+string(startPhase))
	return resp, nil
}

func (e *Engine) load(ctx context.Context, req Request) (*session.State, error) {
	if req.Reset {
		return session.NewState(req.SessionID), nil
	}
	if req.SessionID == "" {
		return session.NewState(""), nil
	}
	st, err := e.sessions.Get(ctx, req.SessionID)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, session.ErrNotFound):
		return session.NewState(""), nil
	default:
		return nil, fmt.Errorf("load session %s: %w", req.SessionID, err)
	}
}

func (e *Engine) route(ctx context.Context, st *session.State, message string, reset bool) *Response {
	if reset {
		return e.reply(ctx, st, replyNewChat, extractor.Context{"event": "reset_chat", "retry_count": 0}, nil)
	}

	if message == "" {
		return e.reprompt(ctx, st)
	}

	if helpPattern.MatchString(message) {
		text := replyHelp
		if st.Phase == session.PhaseAwaitClientCode {
			text += replyHelpLogin
		}
		return e.reply(ctx, st, text, extractor.Context{"event": "help", "retry_count": st.ClientCodeAttempts},
			e.phaseSuggestions(ctx, st))
	}

	switch st.Phase {
	case session.PhaseAwaitClientCode:
		return e.handleClientCode(ctx, st, message)
	case session.PhaseAwaitService:
		return e.handleService(ctx, st, message)
	case session.PhaseAwaitQuestion:
		return e.handleQuestion(ctx, st, message)
	case session.PhaseAwaitConfirmation:
		return e.handleConfirmation(ctx, st, message)
	case session.PhaseDone:
		return e.handleDone(ctx, st, message)
	}

	e.logger.FromContext(ctx).Warn("unknown phase %q, returning to client code", st.Phase)
	st.Phase = session.PhaseAwaitClientCode
	return e.reply(ctx, st, replyStateReset, nil, nil)
}

// reprompt answers an empty message with the prompt of the current phase.
func (e *Engine) reprompt(ctx context.Context, st *session.State) *Response {
	switch st.Phase {
	case session.PhaseAwaitService:
		if st.Profile == nil {
			return e.handleService(ctx, st, "")
		}
		if pending, ok := st.PendingFor(session.ServiceFieldID); ok {
			return e.respond(st, pendingText(pending), []string{suggestYes, suggestNo})
		}
		return e.reply(ctx, st, replyChooseService, extractor.Context{"event": "reprompt"},
			e.serviceOptions(ctx, st.Profile))
	case session.PhaseAwaitQuestion:
		q, ok := st.CurrentQuestion()
		if st.Profile == nil || !ok {
			return e.handleQuestion(ctx, st, "")
		}
		if pending, ok := st.PendingFor(q.ID); ok {
			return e.respond(st, pendingText(pending), []string{suggestYes, suggestNo})
		}
		return e.askCurrent(ctx, st)
	case session.PhaseAwaitConfirmation:
		if st.Profile == nil {
			return e.handleConfirmation(ctx, st, "")
		}
		return e.reply(ctx, st, replySubmitOrRetry, extractor.Context{"event": "reprompt"},
			e.phaseSuggestions(ctx, st))
	case session.PhaseDone:
		return e.reply(ctx, st, replyStartNewPrompt, extractor.Context{"event": "done"}, e.phaseSuggestions(ctx, st))
	}

	return e.reply(ctx, st, e.welcomeText(st), extractor.Context{
		"event":       "welcome",
		"retry_count": max(st.TurnCount-1, 0),
	}, nil)
}

// transition moves st to the target phase. Invalid transitions are logged and leave the
// state untouched.
func (e *Engine) transition(ctx context.Context, st *session.State, to session.Phase) bool {
	if !IsValidTransition(st.Phase, to) {
		e.logger.FromContext(ctx).Error("invalid phase transition %s -> %s", st.Phase, to)
		return false
	}
	st.Phase = to
	return true
}

// restart clears intake-only state and returns to service selection, or to the client code
// step when no profile is held.
func (e *Engine) restart(ctx context.Context, st *session.State) bool {
	target := session.PhaseAwaitClientCode
	if st.Profile != nil {
		target = session.PhaseAwaitService
	}
	if !e.transition(ctx, st, target) {
		return false
	}
	st.ResetIntake()
	return true
}

// reply builds a response for st, passing fallback through reply refinement.
func (e *Engine) reply(ctx context.Context, st *session.State, fallback string, hints extractor.Context, suggestions []string) *Response {
	return e.respond(st, e.extractor.ReplyOr(ctx, fallback, string(st.Phase), hints), suggestions)
}

// respond builds a response for st with text used verbatim.
func (e *Engine) respond(st *session.State, text string, suggestions []string) *Response {
	if suggestions == nil {
		suggestions = []string{}
	}
	resp := &Response{
		SessionID:        st.SessionID,
		AssistantMessage: text,
		Phase:            st.Phase,
		Suggestions:      suggestions,
		Profile:          st.Profile.Clone(),
		ServiceType:      st.ServiceType,
		ReadyToSubmit:    st.Phase == session.PhaseAwaitConfirmation,
	}
	if st.Phase == session.PhaseAwaitConfirmation || st.Phase == session.PhaseDone {
		resp.Summary = st.Summary
	}
	return resp
}

// serviceOptions returns the profile's own options, else the configured list.
func (e *Engine) serviceOptions(ctx context.Context, profile *intake.Profile) []string {
	var options []string
	if profile != nil {
		options = nonBlank(profile.ServiceOptions)
	}
	if len(options) > 0 {
		return options
	}
	if e.options != nil {
		listed, err := e.options.ListServiceOptions(ctx)
		if err != nil {
			e.logger.FromContext(ctx).Warn("list service options: %v", err)
		}
		if options = nonBlank(listed); len(options) > 0 {
			return options
		}
	}
	return append([]string{}, catalog.DefaultServiceOptions...)
}

func (e *Engine) phaseSuggestions(ctx context.Context, st *session.State) []string {
	switch st.Phase {
	case session.PhaseAwaitService:
		if st.Profile != nil {
			return e.serviceOptions(ctx, st.Profile)
		}
	case session.PhaseAwaitQuestion:
		if q, ok := st.CurrentQuestion(); ok {
			return questionSuggestions(q)
		}
	case session.PhaseAwaitConfirmation:
		return []string{suggestSubmit, suggestRestart}
	case session.PhaseDone:
		return []string{suggestStartNew}
	}
	return nil
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
