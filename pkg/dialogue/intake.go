package dialogue

import (
	"context"
	"errors"
	"fmt"

	"intake/pkg/answer"
	"intake/pkg/catalog"
	"intake/pkg/extractor"
	"intake/pkg/intake"
	"intake/pkg/logx"
	"intake/pkg/persistence"
	"intake/pkg/session"
)

func (e *Engine) handleClientCode(ctx context.Context, st *session.State, message string) *Response {
	extracted := answer.ExtractCodeCandidates(message)

	detected := detectName(message)
	if detected != "" {
		st.UserName = detected
	}
	if !answer.LooksLikeCodeAttempt(message, extracted) {
		return e.reply(ctx, st, e.preAuthText(st, message, detected), extractor.Context{
			"event":        "pre_auth_dialog",
			"user_name":    st.UserName,
			"retry_count":  st.ClientCodeAttempts,
			"user_message": message,
		}, nil)
	}

	candidates := append([]string{message}, extracted...)
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		code := intake.NormalizeCode(candidate)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		profile, err := e.profiles.GetProfile(ctx, code)
		if err != nil {
			if !errors.Is(err, persistence.ErrProfileNotFound) {
				e.logger.FromContext(ctx).Warn("profile lookup for %s failed: %v", code, err)
			}
			continue
		}
		if !e.transition(ctx, st, session.PhaseAwaitService) {
			break
		}
		st.Profile = profile
		st.Answers = intake.NewAnswers(profile.DefaultApprover)
		st.ClientCodeAttempts = 0
		st.ServiceAttempts = 0
		e.logger.FromContext(ctx).Info("client %s verified", profile.ClientCode)

		options := e.serviceOptions(ctx, profile)
		return e.reply(ctx, st, fmt.Sprintf(replyCodeWelcome, profile.ClientName), extractor.Context{
			"event":           "client_code_verified",
			"client_name":     profile.ClientName,
			"service_options": options,
			"retry_count":     0,
		}, options)
	}

	st.ClientCodeAttempts++
	return e.reply(ctx, st, codeRetryText(st, message, candidates), extractor.Context{
		"event":           "client_code_retry",
		"retry_count":     st.ClientCodeAttempts,
		"user_message":    message,
		"candidate_codes": candidates[:min(len(candidates), 4)],
	}, nil)
}

func (e *Engine) handleService(ctx context.Context, st *session.State, message string) *Response {
	if st.Profile == nil {
		e.transition(ctx, st, session.PhaseAwaitClientCode)
		return e.reply(ctx, st, replyNeedCode, nil, nil)
	}
	options := e.serviceOptions(ctx, st.Profile)

	if restartCommand.MatchString(message) {
		e.restart(ctx, st)
		return e.reply(ctx, st, replyRestart, nil, options)
	}

	if pending, ok := st.PendingFor(session.ServiceFieldID); ok {
		switch {
		case confirmPattern.MatchString(message):
			st.Pending = nil
			if selected, isString := pending.Value.(string); isString && selected != "" {
				return e.activateService(ctx, st, selected, options)
			}
		case rejectPattern.MatchString(message):
			st.Pending = nil
			return e.reply(ctx, st, serviceRetryText(st.ServiceAttempts, options), extractor.Context{
				"event":           "service_retry_after_reject",
				"service_options": options,
				"retry_count":     st.ServiceAttempts,
			}, options)
		default:
			// A corrected service name rather than yes or no.
			st.Pending = nil
		}
	}

	res := e.resolveService(ctx, st, message, options)
	logx.Debug(ctx, "dialogue", "service resolution %s via %s (%.2f)", res.verdict, res.source, res.confidence)

	switch res.verdict {
	case verdictAccept:
		return e.activateService(ctx, st, res.valueText(), options)
	case verdictClarify:
		suggestions := options
		if res.hasValue {
			st.Pending = &session.Clarification{
				FieldID:    session.ServiceFieldID,
				Value:      res.valueText(),
				Confidence: res.confidence,
				Question:   res.question,
			}
			suggestions = []string{suggestYes, suggestNo}
		}
		return e.reply(ctx, st, res.question, extractor.Context{
			"event":           "service_confirm_candidate",
			"service_options": options,
			"retry_count":     st.ServiceAttempts,
		}, suggestions)
	}

	st.ServiceAttempts++
	return e.reply(ctx, st, serviceRetryText(st.ServiceAttempts, options), extractor.Context{
		"event":           "service_retry",
		"service_options": options,
		"retry_count":     st.ServiceAttempts,
		"user_message":    message,
	}, options)
}

// activateService builds the question queue for selected and asks the first question.
func (e *Engine) activateService(ctx context.Context, st *session.State, selected string, options []string) *Response {
	queue := catalog.BuildQueue(selected)
	if len(queue) == 0 {
		return e.reply(ctx, st, replyNoQuestions, nil, options)
	}
	if !e.transition(ctx, st, session.PhaseAwaitQuestion) {
		return e.reply(ctx, st, replyLostFlow, nil, options)
	}

	st.ServiceType = selected
	st.Questions = queue
	st.QuestionIndex = 0
	st.Summary = ""
	st.ServiceAttempts = 0
	st.Pending = nil
	e.logger.FromContext(ctx).Info("service %q selected, %d questions queued", selected, len(queue))

	return e.askCurrent(ctx, st)
}

func (e *Engine) handleQuestion(ctx context.Context, st *session.State, message string) *Response {
	q, ok := st.CurrentQuestion()
	if st.Profile == nil || !ok {
		e.logger.FromContext(ctx).Warn("question state lost at index %d of %d", st.QuestionIndex, len(st.Questions))
		e.transition(ctx, st, session.PhaseAwaitService)
		var suggestions []string
		if st.Profile != nil {
			suggestions = e.serviceOptions(ctx, st.Profile)
		}
		return e.reply(ctx, st, replyLostFlow, nil, suggestions)
	}

	if restartCommand.MatchString(message) {
		e.restart(ctx, st)
		return e.reply(ctx, st, replyRestart, nil, e.serviceOptions(ctx, st.Profile))
	}

	if pending, ok := st.PendingFor(q.ID); ok {
		switch {
		case confirmPattern.MatchString(message):
			st.Pending = nil
			return e.commit(ctx, st, q, pending.Value)
		case rejectPattern.MatchString(message):
			st.Pending = nil
			return e.askCurrent(ctx, st)
		default:
			// A corrected answer rather than yes or no.
			st.Pending = nil
		}
	}

	res := e.resolveAnswer(ctx, st, q, message)
	logx.Debug(ctx, "dialogue", "%s resolution %s via %s (%.2f)", q.ID, res.verdict, res.source, res.confidence)

	switch res.verdict {
	case verdictAccept:
		return e.commit(ctx, st, q, res.value)
	case verdictClarify:
		st.Pending = &session.Clarification{
			FieldID:    q.ID,
			Value:      res.value,
			Confidence: res.confidence,
			Question:   res.question,
		}
		text := res.question
		if text == "" {
			text = fmt.Sprintf("Did you mean: %s?", res.valueText())
		}
		return e.reply(ctx, st, text, extractor.Context{
			"question":        q.Label,
			"candidate_value": res.value,
			"confidence":      res.confidence,
		}, []string{suggestYes, suggestNo})
	}

	suggestions := res.options
	if len(suggestions) == 0 {
		suggestions = questionSuggestions(q)
	}
	return e.reply(ctx, st, res.message, extractor.Context{"question": q.Label}, suggestions)
}

// commit stores value for q and moves to the next question or the summary.
func (e *Engine) commit(ctx context.Context, st *session.State, q catalog.Question, value any) *Response {
	st.Answers[q.ID] = value
	st.QuestionIndex++
	if _, more := st.CurrentQuestion(); more {
		return e.askCurrent(ctx, st)
	}
	return e.summarizeIntake(ctx, st)
}

// askCurrent phrases the current question, preferring a generated prompt.
func (e *Engine) askCurrent(ctx context.Context, st *session.State) *Response {
	q, _ := st.CurrentQuestion()
	return e.respond(st, e.questionPrompt(ctx, st, q), questionSuggestions(q))
}

func (e *Engine) questionPrompt(ctx context.Context, st *session.State, q catalog.Question) string {
	fallback := fallbackPrompt(q, st.ServiceType)

	known := extractor.Context{"service_type": st.ServiceType}
	for k, v := range st.Answers {
		known[k] = v
	}
	if prompt, err := e.extractor.GeneratePrompt(ctx, q, known, st.RemainingLabels(maxRemainingLabels)); err == nil {
		return prompt
	}
	return e.extractor.ReplyOr(ctx, fallback, string(st.Phase), extractor.Context{
		"service_type":   st.ServiceType,
		"question_label": q.Label,
		"question_type":  string(q.Type),
		"options":        q.Options,
		"required":       q.Required,
	})
}

// summarizeIntake assembles the payload once the queue is exhausted and asks for
// confirmation.
func (e *Engine) summarizeIntake(ctx context.Context, st *session.State) *Response {
	payload, err := intake.BuildPayload(st.ServiceType, st.Answers)
	if err != nil {
		e.logger.FromContext(ctx).Warn("payload assembly failed after the last question: %v", err)
		st.QuestionIndex = max(len(st.Questions)-1, 0)
		return e.reply(ctx, st, replyFixDetails, nil, nil)
	}

	summary := e.summarize(ctx, st.Profile, payload)
	if !e.transition(ctx, st, session.PhaseAwaitConfirmation) {
		return e.reply(ctx, st, replyFixDetails, nil, nil)
	}
	st.Summary = summary

	return e.reply(ctx, st, fmt.Sprintf(replySummaryReady, summary), extractor.Context{"summary_ready": true},
		[]string{suggestSubmit, suggestRestart})
}

// summarize returns the extractor's summary, or the deterministic one.
func (e *Engine) summarize(ctx context.Context, profile *intake.Profile, payload *intake.Payload) string {
	fallback := intake.FallbackSummary(profile, payload)
	summary, err := e.extractor.Summarize(ctx, profile, payload, fallback)
	if err != nil {
		return fallback
	}
	return summary
}
