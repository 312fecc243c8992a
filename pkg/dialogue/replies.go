package dialogue

import (
	"fmt"
	"strings"
	"time"

	"intake/pkg/answer"
	"intake/pkg/catalog"
	"intake/pkg/session"
)

const (
	replyNewChat        = "New chat started. Please share your client code to begin, for example READYONE01."
	replyHelp           = "I can verify your client code, collect your intake details in natural language, summarize everything, and submit it to Monday."
	replyHelpLogin      = " Please share your client code to get started."
	replyStateReset     = "I reset the chat state. Please share your client code to continue."
	replyCodeWelcome    = "Welcome back, %s. What kind of support do you need today?"
	replyChooseService  = "What kind of support do you need today?"
	replyNeedCode       = "I need your client code first. Please share it to continue."
	replyNoQuestions    = "I do not have questions configured for that service yet."
	replyLostFlow       = "I lost the intake flow state. Let us pick the service again."
	replyRephrase       = "Could you rephrase that answer?"
	replyDateHint       = "I can work with natural dates. For example: tomorrow, next Friday, March 5, or 2026-03-05. What due date should I use?"
	replyFixDetails     = "I need a few details corrected before I can generate your summary. Please check your due date and required fields."
	replySummaryReady   = "Great, I have everything I need.\n\nMission Summary\n\n%s\n\nWould you like me to submit this request now?"
	replyReverifyCode   = "I need to re-verify your client code first."
	replyRestart        = "No problem. Let us start a new request. What service do you need?"
	replySubmitOrRetry  = "Type Submit to send this request, or Restart to begin again."
	replySubmitted      = "Submitted successfully.\nRequest ID: %s\nMonday Item: %s\nMock Mode: %s"
	replySubmitFailed   = "I could not submit the request yet. %s"
	replyReadyForNew    = "Ready for a new request. What service should we start with?"
	replyStartNewPrompt = "Type Start New Request when you want to create another intake."

	suggestYes      = "Yes"
	suggestNo       = "No"
	suggestSubmit   = "Submit"
	suggestRestart  = "Restart"
	suggestStartNew = "Start New Request"
	suggestSkip     = "skip"

	maxSubmitErrorChars = 300
	maxRemainingLabels  = 6
)

var welcomeVariants = []string{
	"Hi, I am biaBot. Please share your client code so I can start your intake.",
	"Welcome. I can help capture your request end-to-end. What is your client code?",
	"Hello, I am biaBot. Send your client code and I will walk you through the request.",
}

var codeRetryVariants = []string{
	"I am still unable to verify that client code. Please double-check it and try again.",
	"I still cannot match that client code. Please send the exact code exactly as provided.",
	"That code is not matching yet. Re-enter the exact client code and I will continue.",
}

func timeOfDayGreeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func (e *Engine) welcomeText(st *session.State) string {
	if st.UserName != "" {
		return fmt.Sprintf("%s, %s. Please share your client code so I can start your intake.",
			timeOfDayGreeting(e.now()), st.UserName)
	}
	return welcomeVariants[max(st.TurnCount-1, 0)%len(welcomeVariants)]
}

// detectName returns a capitalized first name from "my name is ..." style phrases.
func detectName(message string) string {
	m := namePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	raw := strings.TrimSpace(m[1])
	if len(raw) < 2 || digitPattern.MatchString(raw) {
		return ""
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}

func (e *Engine) preAuthText(st *session.State, message, detected string) string {
	if detected != "" {
		return fmt.Sprintf("Hi %s. Please share your client code so I can log you in.", detected)
	}
	name := st.UserName

	switch {
	case identityPattern.MatchString(message):
		if name != "" {
			return fmt.Sprintf("Hi %s. I am biaBot, your intake assistant. Please share your client code and I will guide you through the request.", name)
		}
		return "I am biaBot, your intake assistant. Please share your client code so I can continue."
	case greetingPattern.MatchString(message):
		greeting := timeOfDayGreeting(e.now())
		if name != "" {
			return fmt.Sprintf("%s, %s. Please share your client code so we can continue.", greeting, name)
		}
		return greeting + ". I am biaBot. Please share your client code to go forward."
	case strings.Contains(message, "?"):
		if name != "" {
			return fmt.Sprintf("Good question, %s. I can answer that after login. Please share your client code first.", name)
		}
		return "Good question. Please share your client code first, then I can help with the rest."
	}

	if name != "" {
		return fmt.Sprintf("Thanks %s. Please share your client code to continue.", name)
	}
	return "Please share your client code when you are ready, and I will continue."
}

func codeRetryText(st *session.State, message string, candidates []string) string {
	prefix := ""
	if st.UserName != "" {
		prefix = st.UserName + ", "
	}

	if st.ClientCodeAttempts <= 1 {
		return prefix + "I could not verify that code yet. Please share the exact client code you received (example: READYONE01)."
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || strings.EqualFold(c, message) {
			continue
		}
		if letterPattern.MatchString(c) && digitPattern.MatchString(c) {
			return fmt.Sprintf("%sI still could not verify %q. Please resend the exact code without extra words if possible.", prefix, c)
		}
	}
	return prefix + codeRetryVariants[(st.ClientCodeAttempts-2)%len(codeRetryVariants)]
}

func serviceRetryText(attempts int, options []string) string {
	switch {
	case attempts <= 1:
		return "I did not catch the service type. Please choose one of these options."
	case attempts == 2 && len(options) > 0:
		return fmt.Sprintf("I still could not map that service. Please choose the closest match from the list, for example %q.", options[0])
	default:
		return "I am still not matching the service correctly. Pick one option below and I will continue."
	}
}

var fieldPrompts = map[string]string{
	"goal":              "What outcome are you aiming for?",
	"target_audience":   "Who is the target audience?",
	"primary_cta":       "What is the primary call to action?",
	"due_date":          "When do you want this delivered?",
	"approver":          "Who should approve this request?",
	"required_elements": "Are there required elements to include (logos, disclaimers, QR code, etc.)?",
	"references":        "Any references or links I should use? This is optional.",
	"uploaded_files":    "Do you want to attach any files or links? This is optional.",
}

// fallbackPrompt is the deterministic wording for a question.
func fallbackPrompt(q catalog.Question, serviceType string) string {
	if q.ID == "project_title" {
		return fmt.Sprintf("What should we call this %s request?", strings.ToLower(serviceType))
	}
	if prompt, ok := fieldPrompts[q.ID]; ok {
		return prompt
	}

	label := strings.TrimSpace(q.Label)
	if q.IsChoice() && len(q.Options) > 0 {
		return fmt.Sprintf("%s Please choose one: %s.", label, strings.Join(q.Options, ", "))
	}
	if q.Required {
		return fmt.Sprintf("Could you share: %s?", label)
	}
	return fmt.Sprintf("Could you share: %s? This is optional.", label)
}

func questionSuggestions(q catalog.Question) []string {
	out := append([]string{}, q.Options...)
	if !q.Required && !q.IsChoice() {
		out = append(out, suggestSkip)
	}
	return out
}

// pendingText repeats an open yes/no clarification.
func pendingText(p *session.Clarification) string {
	if p.Question != "" {
		return p.Question
	}
	return fmt.Sprintf("Did you mean: %s?", answer.ValueString(p.Value))
}

// clarificationText is the default yes/no question for a candidate value.
func clarificationText(q catalog.Question, value string) string {
	if q.Type == catalog.TypeDate {
		return fmt.Sprintf("To confirm, should I use %s as the due date?", value)
	}
	return fmt.Sprintf("To confirm, should I use %q for %q?", value, q.Label)
}

func boundText(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
