package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/catalog"
	"intake/pkg/extractor"
	"intake/pkg/intake"
	"intake/pkg/persistence"
	"intake/pkg/session"
	"intake/pkg/ticketing"
)

// Wednesday afternoon.
var wednesday = time.Date(2026, time.March, 4, 15, 30, 0, 0, time.UTC)

type spyExtractor struct {
	mu           sync.Mutex
	extraction   *extractor.Extraction
	prompt       string
	refine       func(string) string
	extractCalls int
	extracted    []string
}

func (s *spyExtractor) Extract(_ context.Context, f extractor.Field, _ string, _ extractor.Context) (extractor.Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractCalls++
	s.extracted = append(s.extracted, f.ID)
	if s.extraction == nil {
		return extractor.Extraction{}, extractor.ErrUnavailable
	}
	return *s.extraction, nil
}

func (s *spyExtractor) GeneratePrompt(context.Context, extractor.Field, extractor.Context, []string) (string, error) {
	if s.prompt == "" {
		return "", extractor.ErrUnavailable
	}
	return s.prompt, nil
}

func (s *spyExtractor) Summarize(context.Context, *intake.Profile, *intake.Payload, string) (string, error) {
	return "", extractor.ErrUnavailable
}

func (s *spyExtractor) RefineReply(_ context.Context, fallback, _ string, _ extractor.Context) (string, error) {
	if s.refine == nil {
		return "", extractor.ErrUnavailable
	}
	return s.refine(fallback), nil
}

func (s *spyExtractor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extractCalls
}

type fakeTickets struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTickets) CreateItem(context.Context, *intake.Profile, *intake.Payload, string) (ticketing.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ticketing.Result{}, f.err
	}
	return ticketing.Result{ItemID: "mock-0a1b2c3d4e", MockMode: true}, nil
}

type harness struct {
	engine   *Engine
	sessions *session.MemoryStore
	store    *persistence.MemoryStore
	tickets  *fakeTickets
	spy      *spyExtractor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	store := persistence.NewMemoryStore()
	require.NoError(t, persistence.Seed(ctx, store))
	sessions := session.NewMemoryStore(session.Options{})
	t.Cleanup(func() { _ = sessions.Close() })

	h := &harness{sessions: sessions, store: store, tickets: &fakeTickets{}, spy: &spyExtractor{}}
	engine, err := New(Deps{
		Sessions:  sessions,
		Profiles:  store,
		Options:   store,
		Tickets:   h.tickets,
		Records:   store,
		Extractor: h.spy,
	}, WithClock(func() time.Time { return wednesday }))
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) send(t *testing.T, sessionID, message string) *Response {
	t.Helper()
	resp, err := h.engine.HandleMessage(context.Background(), Request{SessionID: sessionID, Message: message})
	require.NoError(t, err)
	return resp
}

func (h *harness) state(t *testing.T, sessionID string) *session.State {
	t.Helper()
	st, err := h.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return st
}

func (h *harness) logCount(t *testing.T) int {
	t.Helper()
	logs, err := h.store.ListRequestLogs(context.Background(), 0)
	require.NoError(t, err)
	return len(logs)
}

// seed saves a prepared state and returns its id.
func (h *harness) seed(t *testing.T, st *session.State) string {
	t.Helper()
	require.NoError(t, h.sessions.Save(context.Background(), st))
	return st.SessionID
}

// questionState is an authenticated session positioned at fieldID.
func questionState(service, fieldID string, answers intake.Answers) *session.State {
	profile := intake.SampleProfile()
	st := session.NewState("")
	st.Phase = session.PhaseAwaitQuestion
	st.Profile = profile
	st.ServiceType = service
	st.Questions = catalog.BuildQueue(service)
	st.Answers = intake.NewAnswers(profile.DefaultApprover)
	for k, v := range answers {
		st.Answers[k] = v
	}
	for i, q := range st.Questions {
		if q.ID == fieldID {
			st.QuestionIndex = i
		}
	}
	return st
}

func completeAnswers() intake.Answers {
	return intake.Answers{
		"project_title":     "Spring Hiring Push",
		"goal":              "More applicants",
		"target_audience":   "job seekers",
		"primary_cta":       "Apply now",
		"time_sensitivity":  "Soon",
		"due_date":          "2026-03-06",
		"approver":          "Lupita R.",
		"required_elements": "EOE statement",
		"references":        "",
		"dimensions":        "1080x1080",
	}
}

func confirmationState() *session.State {
	st := questionState("Custom graphic", "uploaded_files", completeAnswers())
	st.Phase = session.PhaseAwaitConfirmation
	st.QuestionIndex = len(st.Questions)
	st.Summary = "Client: ReadyOne Industries (READYONE01)"
	return st
}

func TestClientCodeVerified(t *testing.T) {
	h := newHarness(t)

	resp := h.send(t, "", "READYONE01")

	assert.Equal(t, session.PhaseAwaitService, resp.Phase)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "ReadyOne Industries", resp.Profile.ClientName)
	assert.Equal(t, intake.SampleProfile().ServiceOptions, resp.Suggestions)
	assert.Equal(t, "Welcome back, ReadyOne Industries. What kind of support do you need today?", resp.AssistantMessage)
	assert.NotEmpty(t, resp.SessionID)

	st := h.state(t, resp.SessionID)
	assert.Equal(t, intake.Answers{"approver": "Lupita R."}, st.Answers)
	assert.Equal(t, 1, st.TurnCount)
}

func TestClientCodeInsideSentence(t *testing.T) {
	h := newHarness(t)
	resp := h.send(t, "", "hi, my client code is readyone01")
	assert.Equal(t, session.PhaseAwaitService, resp.Phase)
}

func TestClientCodeRetries(t *testing.T) {
	h := newHarness(t)

	first := h.send(t, "", "ABC123")
	assert.Equal(t, session.PhaseAwaitClientCode, first.Phase)
	assert.Equal(t, "I could not verify that code yet. Please share the exact client code you received (example: READYONE01).",
		first.AssistantMessage)

	second := h.send(t, first.SessionID, "my code is XYZ999 thanks")
	assert.Equal(t, `I still could not verify "XYZ999". Please resend the exact code without extra words if possible.`,
		second.AssistantMessage)

	third := h.send(t, first.SessionID, "ZZZ111")
	assert.Equal(t, "I still cannot match that client code. Please send the exact code exactly as provided.",
		third.AssistantMessage)
	assert.Equal(t, 3, h.state(t, first.SessionID).ClientCodeAttempts)
}

func TestPreAuthSmallTalk(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"greeting", "hello", "Good afternoon. I am biaBot. Please share your client code to go forward."},
		{"name", "my name is dana", "Hi Dana. Please share your client code so I can log you in."},
		{"identity", "who are you", "I am biaBot, your intake assistant. Please share your client code so I can continue."},
		{"question", "is this thing on?", "Good question. Please share your client code first, then I can help with the rest."},
		{"other", "sounds fine", "Please share your client code when you are ready, and I will continue."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			resp := h.send(t, "", tt.message)
			assert.Equal(t, tt.want, resp.AssistantMessage)
			assert.Equal(t, session.PhaseAwaitClientCode, resp.Phase)
			assert.Zero(t, h.state(t, resp.SessionID).ClientCodeAttempts)
		})
	}
}

func TestPreAuthRemembersName(t *testing.T) {
	h := newHarness(t)

	first := h.send(t, "", "I'm sam")
	assert.Equal(t, "Hi Sam. Please share your client code so I can log you in.", first.AssistantMessage)

	second := h.send(t, first.SessionID, "")
	assert.Equal(t, "Good afternoon, Sam. Please share your client code so I can start your intake.", second.AssistantMessage)

	third := h.send(t, first.SessionID, "nope")
	assert.Equal(t, "Thanks Sam. Please share your client code to continue.", third.AssistantMessage)
}

func TestWelcomeCyclesWithTurns(t *testing.T) {
	h := newHarness(t)

	first := h.send(t, "", "")
	second := h.send(t, first.SessionID, "")

	assert.Equal(t, welcomeVariants[0], first.AssistantMessage)
	assert.Equal(t, welcomeVariants[1], second.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitClientCode, second.Phase)
}

func TestEmptyMessageRepromptsPhase(t *testing.T) {
	tests := []struct {
		name        string
		build       func() *session.State
		message     string
		suggestions []string
	}{
		{
			name: "service",
			build: func() *session.State {
				st := session.NewState("")
				st.Phase = session.PhaseAwaitService
				st.Profile = intake.SampleProfile()
				st.Answers = intake.NewAnswers(st.Profile.DefaultApprover)
				return st
			},
			message:     replyChooseService,
			suggestions: intake.SampleProfile().ServiceOptions,
		},
		{
			name:        "question",
			build:       func() *session.State { return questionState("Custom graphic", "due_date", nil) },
			message:     "When do you want this delivered?",
			suggestions: []string{},
		},
		{
			name: "pending clarification",
			build: func() *session.State {
				st := questionState("Custom graphic", "time_sensitivity", nil)
				st.Pending = &session.Clarification{FieldID: "time_sensitivity", Value: "Standard", Confidence: 0.6}
				return st
			},
			message:     "Did you mean: Standard?",
			suggestions: []string{suggestYes, suggestNo},
		},
		{
			name:        "confirmation",
			build:       confirmationState,
			message:     replySubmitOrRetry,
			suggestions: []string{suggestSubmit, suggestRestart},
		},
		{
			name: "done",
			build: func() *session.State {
				st := confirmationState()
				st.Phase = session.PhaseDone
				return st
			},
			message:     replyStartNewPrompt,
			suggestions: []string{suggestStartNew},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			seeded := tt.build()
			id := h.seed(t, seeded)

			resp := h.send(t, id, "")

			assert.Equal(t, tt.message, resp.AssistantMessage)
			assert.Equal(t, tt.suggestions, resp.Suggestions)
			assert.Equal(t, seeded.Phase, resp.Phase)
			st := h.state(t, id)
			assert.Equal(t, seeded.QuestionIndex, st.QuestionIndex)
			assert.Equal(t, seeded.Pending != nil, st.Pending != nil)
			assert.NotContains(t, resp.AssistantMessage, "client code")
		})
	}
}

func TestEmptyMessageBeforeLoginWelcomes(t *testing.T) {
	h := newHarness(t)

	resp := h.send(t, "", "")

	assert.Equal(t, session.PhaseAwaitClientCode, resp.Phase)
	assert.Contains(t, welcomeVariants, resp.AssistantMessage)
	assert.Empty(t, resp.Suggestions)
}

func TestHelpKeepsPhase(t *testing.T) {
	h := newHarness(t)

	resp := h.send(t, "", "help")
	assert.Equal(t, replyHelp+replyHelpLogin, resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitClientCode, resp.Phase)

	authed := h.send(t, resp.SessionID, "READYONE01")
	help := h.send(t, authed.SessionID, "what can you do")
	assert.Equal(t, replyHelp, help.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitService, help.Phase)
	assert.Equal(t, authed.Suggestions, help.Suggestions)
}

func TestResetReusesSessionID(t *testing.T) {
	h := newHarness(t)
	authed := h.send(t, "", "READYONE01")

	resp, err := h.engine.HandleMessage(context.Background(), Request{SessionID: authed.SessionID, Reset: true})
	require.NoError(t, err)

	assert.Equal(t, authed.SessionID, resp.SessionID)
	assert.Equal(t, replyNewChat, resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitClientCode, resp.Phase)
	assert.Nil(t, resp.Profile)
}

func TestUnknownSessionStartsFresh(t *testing.T) {
	h := newHarness(t)
	resp := h.send(t, "expired-session", "")
	assert.NotEqual(t, "expired-session", resp.SessionID)
	assert.Equal(t, session.PhaseAwaitClientCode, resp.Phase)
}

func TestServiceRuleAcceptSkipsExtractor(t *testing.T) {
	h := newHarness(t)
	authed := h.send(t, "", "READYONE01")

	resp := h.send(t, authed.SessionID, "custom graphic")

	assert.Zero(t, h.spy.calls())
	assert.Equal(t, session.PhaseAwaitQuestion, resp.Phase)
	assert.Equal(t, "Custom graphic", resp.ServiceType)
	assert.Equal(t, "What should we call this custom graphic request?", resp.AssistantMessage)
	assert.Empty(t, resp.Suggestions)

	st := h.state(t, authed.SessionID)
	assert.Equal(t, catalog.BuildQueue("Custom graphic"), st.Questions)
	assert.Zero(t, st.QuestionIndex)
}

func TestServiceClarification(t *testing.T) {
	h := newHarness(t)
	authed := h.send(t, "", "READYONE01")
	h.spy.extraction = &extractor.Extraction{OK: true, Value: "Press release", Confidence: 0.65}

	clarify := h.send(t, authed.SessionID, "something for the media folks")
	assert.Equal(t, `Did you mean "Press release"?`, clarify.AssistantMessage)
	assert.Equal(t, []string{"Yes", "No"}, clarify.Suggestions)
	assert.Equal(t, session.PhaseAwaitService, clarify.Phase)
	assert.Equal(t, []string{session.ServiceFieldID}, h.spy.extracted)

	pending := h.state(t, authed.SessionID).Pending
	require.NotNil(t, pending)
	assert.Equal(t, "Press release", pending.Value)

	confirmed := h.send(t, authed.SessionID, "yes")
	assert.Equal(t, session.PhaseAwaitQuestion, confirmed.Phase)
	assert.Equal(t, "Press release", confirmed.ServiceType)
	assert.Nil(t, h.state(t, authed.SessionID).Pending)
}

func TestServiceClarificationRejected(t *testing.T) {
	h := newHarness(t)
	authed := h.send(t, "", "READYONE01")
	h.spy.extraction = &extractor.Extraction{OK: true, Value: "Press release", Confidence: 0.65}
	h.send(t, authed.SessionID, "something for the media folks")

	resp := h.send(t, authed.SessionID, "no")

	assert.Equal(t, "I did not catch the service type. Please choose one of these options.", resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitService, resp.Phase)
	assert.Equal(t, authed.Suggestions, resp.Suggestions)
	assert.Nil(t, h.state(t, authed.SessionID).Pending)
}

func TestServiceRetries(t *testing.T) {
	h := newHarness(t)
	authed := h.send(t, "", "READYONE01")

	first := h.send(t, authed.SessionID, "zzz")
	second := h.send(t, authed.SessionID, "zzz")
	third := h.send(t, authed.SessionID, "zzz")

	assert.Equal(t, "I did not catch the service type. Please choose one of these options.", first.AssistantMessage)
	assert.Equal(t, `I still could not map that service. Please choose the closest match from the list, for example "Campaign set (up to 6 assets)".`,
		second.AssistantMessage)
	assert.Equal(t, "I am still not matching the service correctly. Pick one option below and I will continue.", third.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitService, third.Phase)
	assert.Equal(t, 3, h.state(t, authed.SessionID).ServiceAttempts)
}

func TestRuleAcceptGate(t *testing.T) {
	tests := []struct {
		name    string
		fieldID string
		message string
		want    any
	}{
		{"iso date", "due_date", "2026-03-10", "2026-03-10"},
		{"exact choice", "time_sensitivity", "URGENT", "Urgent"},
		{"free text", "goal", "grow signups", "grow signups"},
		{"optional skip", "references", "skip", ""},
		{"links", "references", "https://a.example, brief.pdf", []string{"https://a.example", "brief.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.spy.extraction = &extractor.Extraction{OK: true, Value: "wrong", Confidence: 1}
			id := h.seed(t, questionState("Custom graphic", tt.fieldID, nil))

			h.send(t, id, tt.message)

			assert.Zero(t, h.spy.calls())
			assert.Equal(t, tt.want, h.state(t, id).Answers[tt.fieldID])
		})
	}
}

func TestNextFridayOnWednesday(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, questionState("Custom graphic", "due_date", nil))

	resp := h.send(t, id, "next friday")

	st := h.state(t, id)
	assert.Equal(t, "2026-03-06", st.Answers["due_date"])
	q, ok := st.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, "approver", q.ID)
	assert.Equal(t, "Who should approve this request?", resp.AssistantMessage)
}

func TestDueDateWithoutYear(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"March 5", "2026-03-05"},
		{"january 10th", "2027-01-10"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(t)
			id := h.seed(t, questionState("Custom graphic", "due_date", nil))

			h.send(t, id, tt.input)

			st := h.state(t, id)
			assert.Equal(t, tt.want, st.Answers["due_date"])
			assert.Zero(t, h.spy.calls())
			q, ok := st.CurrentQuestion()
			require.True(t, ok)
			assert.Equal(t, "approver", q.ID)
		})
	}
}

func TestQuestionClarification(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantValue any
		wantField string
		wantText  string
	}{
		{"confirm commits", "yes", "Standard", "due_date", "When do you want this delivered?"},
		{"deny re-asks", "no", nil, "time_sensitivity", "Time Sensitivity Please choose one: Standard, Soon, Urgent."},
		{"other re-extracts", "urgent", "Urgent", "due_date", "When do you want this delivered?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.spy.extraction = &extractor.Extraction{OK: true, Value: "Standard", Confidence: 0.6}
			id := h.seed(t, questionState("Custom graphic", "time_sensitivity", nil))

			clarify := h.send(t, id, "whenever")
			assert.Equal(t, `To confirm, should I use "Standard" for "Time Sensitivity"?`, clarify.AssistantMessage)
			assert.Equal(t, []string{"Yes", "No"}, clarify.Suggestions)
			require.NotNil(t, h.state(t, id).Pending)

			resp := h.send(t, id, tt.reply)

			st := h.state(t, id)
			assert.Nil(t, st.Pending)
			assert.Equal(t, tt.wantValue, st.Answers["time_sensitivity"])
			q, ok := st.CurrentQuestion()
			require.True(t, ok)
			assert.Equal(t, tt.wantField, q.ID)
			assert.Equal(t, tt.wantText, resp.AssistantMessage)
			assert.Equal(t, 1, h.spy.calls())
		})
	}
}

func TestExtractorAcceptsConfidentValue(t *testing.T) {
	h := newHarness(t)
	h.spy.extraction = &extractor.Extraction{OK: true, Value: "Soon", Confidence: 0.9}
	id := h.seed(t, questionState("Custom graphic", "time_sensitivity", nil))

	h.send(t, id, "in a couple of weeks")

	st := h.state(t, id)
	assert.Equal(t, "Soon", st.Answers["time_sensitivity"])
	assert.Nil(t, st.Pending)
}

func TestDateRejectionHint(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, questionState("Custom graphic", "due_date", nil))

	resp := h.send(t, id, "sometime")

	assert.Equal(t, replyDateHint, resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitQuestion, resp.Phase)
	_, answered := h.state(t, id).Answers["due_date"]
	assert.False(t, answered)
}

func TestChoiceRejectionOffersOptions(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, questionState("Custom graphic", "copy_provided", nil))

	resp := h.send(t, id, "zzz")

	assert.Equal(t, "Please choose one of the available options.", resp.AssistantMessage)
	assert.Equal(t, []string{"Yes", "No"}, resp.Suggestions)
}

func TestGeneratedPromptAndRefinedReplies(t *testing.T) {
	h := newHarness(t)
	h.spy.prompt = "What is the headline for this piece?"
	h.spy.refine = func(fallback string) string { return "~ " + fallback }

	authed := h.send(t, "", "READYONE01")
	assert.Equal(t, "~ Welcome back, ReadyOne Industries. What kind of support do you need today?", authed.AssistantMessage)

	resp := h.send(t, authed.SessionID, "Custom graphic")
	assert.Equal(t, "What is the headline for this piece?", resp.AssistantMessage)
}

func TestFullIntakeAndSubmit(t *testing.T) {
	h := newHarness(t)
	answers := map[string]string{
		"project_title":     "Spring Hiring Push",
		"goal":              "More applicants",
		"target_audience":   "job seekers",
		"primary_cta":       "Apply now",
		"time_sensitivity":  "Soon",
		"due_date":          "next friday",
		"approver":          "Lupita R.",
		"required_elements": "EOE statement",
		"references":        "skip",
		"dimensions":        "1080x1080",
		"copy_provided":     "Yes",
		"bilingual":         "No",
		"image_source":      "Provided images",
		"accessibility":     "skip",
		"uploaded_files":    "brief.pdf",
	}

	id := h.send(t, "", "READYONE01").SessionID
	resp := h.send(t, id, "Custom graphic")
	for resp.Phase == session.PhaseAwaitQuestion {
		q, ok := h.state(t, id).CurrentQuestion()
		require.True(t, ok)
		text, known := answers[q.ID]
		require.True(t, known, "unexpected question %s", q.ID)
		resp = h.send(t, id, text)
	}

	require.Equal(t, session.PhaseAwaitConfirmation, resp.Phase)
	assert.True(t, resp.ReadyToSubmit)
	assert.True(t, strings.HasPrefix(resp.AssistantMessage, "Great, I have everything I need.\n\nMission Summary\n\n"))
	assert.Contains(t, resp.Summary, "Due Date: 2026-03-06")
	assert.Contains(t, resp.Summary, "Files: brief.pdf")
	assert.Contains(t, resp.Summary, "- copy_provided: Yes")
	assert.Equal(t, []string{"Submit", "Restart"}, resp.Suggestions)
	assert.Zero(t, h.spy.calls())

	done := h.send(t, id, "looks good, submit")

	assert.Equal(t, session.PhaseDone, done.Phase)
	assert.NotEmpty(t, done.RequestID)
	assert.Equal(t, "mock-0a1b2c3d4e", done.TicketID)
	assert.False(t, done.ReadyToSubmit)
	assert.Equal(t, fmt.Sprintf("Submitted successfully.\nRequest ID: %s\nMonday Item: mock-0a1b2c3d4e\nMock Mode: Yes", done.RequestID),
		done.AssistantMessage)
	assert.Equal(t, 1, h.tickets.calls)
	assert.Equal(t, 1, h.logCount(t))

	logs, err := h.store.ListRequestLogs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, done.RequestID, logs[0].ID)
	assert.Equal(t, "Spring Hiring Push", logs[0].ProjectTitle)

	after := h.send(t, id, "yes")
	assert.Equal(t, replyStartNewPrompt, after.AssistantMessage)
	assert.Equal(t, 1, h.tickets.calls)
}

func TestConfirmationNeedsExplicitChoice(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, confirmationState())

	resp := h.send(t, id, "hmm let me think")

	assert.Equal(t, replySubmitOrRetry, resp.AssistantMessage)
	assert.True(t, resp.ReadyToSubmit)
	assert.Zero(t, h.tickets.calls)
}

func TestTicketFailureKeepsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.tickets.err = fmt.Errorf("%w: HTTP 500: %s", ticketing.ErrCreateFailed, strings.Repeat("x", 400))
	id := h.seed(t, confirmationState())

	resp := h.send(t, id, "submit")

	assert.Equal(t, session.PhaseAwaitConfirmation, resp.Phase)
	assert.True(t, resp.ReadyToSubmit)
	assert.True(t, strings.HasPrefix(resp.AssistantMessage, "I could not submit the request yet. ticket creation failed: HTTP 500"))
	assert.LessOrEqual(t, len(resp.AssistantMessage), len("I could not submit the request yet. ")+maxSubmitErrorChars)
	assert.Empty(t, resp.RequestID)
	assert.Zero(t, h.logCount(t))

	h.tickets.err = nil
	retried := h.send(t, id, "submit")
	assert.Equal(t, session.PhaseDone, retried.Phase)
	assert.Equal(t, 2, h.tickets.calls)
	assert.Equal(t, 1, h.logCount(t))
}

func TestPayloadFailureReturnsToQuestions(t *testing.T) {
	h := newHarness(t)
	answers := completeAnswers()
	delete(answers, "goal")
	id := h.seed(t, questionState("Custom graphic", "uploaded_files", answers))

	resp := h.send(t, id, "skip")

	assert.Equal(t, replyFixDetails, resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitQuestion, resp.Phase)
	st := h.state(t, id)
	assert.Equal(t, len(st.Questions)-1, st.QuestionIndex)
}

func TestRestartFromAnyAuthenticatedPhase(t *testing.T) {
	tests := []struct {
		name  string
		state func() *session.State
		want  string
	}{
		{"service", func() *session.State {
			st := questionState("", "", nil)
			st.Phase = session.PhaseAwaitService
			st.Questions = []catalog.Question{}
			return st
		}, replyRestart},
		{"question", func() *session.State {
			return questionState("Custom graphic", "due_date", completeAnswers())
		}, replyRestart},
		{"confirmation", confirmationState, replyRestart},
		{"done", func() *session.State {
			st := confirmationState()
			st.Phase = session.PhaseDone
			return st
		}, replyReadyForNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.seed(t, tt.state())

			resp := h.send(t, id, "restart")

			assert.Equal(t, tt.want, resp.AssistantMessage)
			assert.Equal(t, session.PhaseAwaitService, resp.Phase)
			assert.Equal(t, intake.SampleProfile().ServiceOptions, resp.Suggestions)

			st := h.state(t, id)
			assert.Equal(t, intake.Answers{"approver": "Lupita R."}, st.Answers)
			assert.Empty(t, st.ServiceType)
			assert.Empty(t, st.Summary)
			assert.Nil(t, st.Pending)
		})
	}
}

func TestFreeTextMentioningChangeIsAnAnswer(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, questionState("Custom graphic", "goal", nil))

	h.send(t, id, "change how job seekers see us")

	st := h.state(t, id)
	assert.Equal(t, session.PhaseAwaitQuestion, st.Phase)
	assert.Equal(t, "change how job seekers see us", st.Answers["goal"])
}

func TestLostQueueReturnsToService(t *testing.T) {
	h := newHarness(t)
	st := questionState("Custom graphic", "goal", nil)
	st.QuestionIndex = len(st.Questions) + 3
	id := h.seed(t, st)

	resp := h.send(t, id, "anything")

	assert.Equal(t, replyLostFlow, resp.AssistantMessage)
	assert.Equal(t, session.PhaseAwaitService, resp.Phase)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to session.Phase
		want     bool
	}{
		{session.PhaseAwaitClientCode, session.PhaseAwaitService, true},
		{session.PhaseAwaitClientCode, session.PhaseDone, false},
		{session.PhaseAwaitService, session.PhaseAwaitQuestion, true},
		{session.PhaseAwaitQuestion, session.PhaseAwaitConfirmation, true},
		{session.PhaseAwaitQuestion, session.PhaseDone, false},
		{session.PhaseAwaitConfirmation, session.PhaseDone, true},
		{session.PhaseDone, session.PhaseAwaitService, true},
		{session.PhaseDone, session.PhaseAwaitConfirmation, false},
		{session.PhaseAwaitQuestion, session.PhaseAwaitQuestion, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTransition(tt.from, tt.to))
		})
	}

	for _, phase := range AllPhases() {
		_, listed := validTransitions[phase]
		assert.True(t, listed, "phase %s missing from transition table", phase)
	}

	next := ValidNextPhases(session.PhaseAwaitClientCode)
	assert.Equal(t, []session.Phase{session.PhaseAwaitService}, next)
	next[0] = session.PhaseDone
	assert.False(t, IsValidTransition(session.PhaseAwaitClientCode, session.PhaseDone))
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness(t)
	id := h.send(t, "", "").SessionID

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.HandleMessage(context.Background(), Request{SessionID: id, Message: ""})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 11, h.state(t, id).TurnCount)
}

type failingStore struct {
	session.Store
}

func (failingStore) Get(context.Context, string) (*session.State, error) {
	return nil, errors.New("redis down")
}

func TestStoreFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	engine, err := New(Deps{
		Sessions: failingStore{Store: h.sessions},
		Profiles: h.store,
		Tickets:  h.tickets,
		Records:  h.store,
	})
	require.NoError(t, err)

	_, err = engine.HandleMessage(context.Background(), Request{SessionID: "abc", Message: "hi"})
	assert.ErrorContains(t, err, "redis down")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
