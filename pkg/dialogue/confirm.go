package dialogue

import (
	"context"
	"fmt"

	"intake/pkg/extractor"
	"intake/pkg/intake"
	"intake/pkg/metrics"
	"intake/pkg/session"
)

func (e *Engine) handleConfirmation(ctx context.Context, st *session.State, message string) *Response {
	if st.Profile == nil {
		e.transition(ctx, st, session.PhaseAwaitClientCode)
		return e.reply(ctx, st, replyReverifyCode, nil, nil)
	}

	if restartPattern.MatchString(message) {
		e.restart(ctx, st)
		return e.reply(ctx, st, replyRestart, nil, e.serviceOptions(ctx, st.Profile))
	}
	if !submitPattern.MatchString(message) {
		return e.reply(ctx, st, replySubmitOrRetry, nil, []string{suggestSubmit, suggestRestart})
	}
	return e.submit(ctx, st)
}

// submit creates the ticket and appends the request log. Any failure leaves the phase at
// await_confirmation so the user can retry.
func (e *Engine) submit(ctx context.Context, st *session.State) *Response {
	log := e.logger.FromContext(ctx)

	rec, mock, err := e.createRequest(ctx, st)
	if err != nil {
		log.Warn("submission failed: %v", err)
		e.metrics.ObserveSubmission(metrics.OutcomeFailure, mock)
		text := fmt.Sprintf(replySubmitFailed, boundText(err.Error(), maxSubmitErrorChars))
		return e.reply(ctx, st, text, nil, []string{suggestSubmit, suggestRestart})
	}
	e.metrics.ObserveSubmission(metrics.OutcomeSuccess, mock)

	if !e.transition(ctx, st, session.PhaseDone) {
		return e.reply(ctx, st, replySubmitOrRetry, nil, []string{suggestSubmit, suggestRestart})
	}
	st.Summary = rec.Summary
	log.Info("request %s submitted as ticket %s (mock=%t)", rec.ID, rec.TicketID, mock)

	mockLabel := "No"
	if mock {
		mockLabel = "Yes"
	}
	resp := e.reply(ctx, st, fmt.Sprintf(replySubmitted, rec.ID, rec.TicketID, mockLabel), nil,
		[]string{suggestStartNew})
	resp.RequestID = rec.ID
	resp.TicketID = rec.TicketID
	return resp
}

// createRequest runs the submission sequence: payload, summary, ticket, log record.
func (e *Engine) createRequest(ctx context.Context, st *session.State) (intake.RequestRecord, bool, error) {
	payload, err := intake.BuildPayload(st.ServiceType, st.Answers)
	if err != nil {
		return intake.RequestRecord{}, false, err
	}

	summary := st.Summary
	if summary == "" {
		summary = e.summarize(ctx, st.Profile, payload)
	}

	ticket, err := e.tickets.CreateItem(ctx, st.Profile, payload, summary)
	if err != nil {
		return intake.RequestRecord{}, false, err
	}

	rec, err := e.records.AppendRequestLog(ctx, intake.NewRequestRecord(st.Profile, payload, summary, ticket.ItemID))
	if err != nil {
		return intake.RequestRecord{}, ticket.MockMode, fmt.Errorf("record request: %w", err)
	}
	return rec, ticket.MockMode, nil
}

func (e *Engine) handleDone(ctx context.Context, st *session.State, message string) *Response {
	if restartPattern.MatchString(message) || startNewPhrase.MatchString(message) {
		e.restart(ctx, st)
		var options []string
		if st.Profile != nil {
			options = e.serviceOptions(ctx, st.Profile)
		}
		return e.reply(ctx, st, replyReadyForNew, nil, options)
	}
	return e.reply(ctx, st, replyStartNewPrompt, extractor.Context{"event": "done"}, []string{suggestStartNew})
}
