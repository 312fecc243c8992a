package dialogue

import (
	"regexp"

	"intake/pkg/session"
)

// Resolution thresholds.
const (
	RuleAcceptConfidence      = 0.86
	ExtractorAcceptConfidence = 0.78
	ClarifyConfidence         = 0.55
)

// validTransitions defines the intake state machine. Staying in the current phase is always
// allowed and is not listed.
var validTransitions = map[session.Phase][]session.Phase{
	session.PhaseAwaitClientCode: {
		session.PhaseAwaitService, // client code resolved
	},
	session.PhaseAwaitService: {
		session.PhaseAwaitQuestion,   // service chosen and queue built
		session.PhaseAwaitClientCode, // profile missing from state
	},
	session.PhaseAwaitQuestion: {
		session.PhaseAwaitConfirmation, // queue exhausted and payload assembled
		session.PhaseAwaitService,      // restart or lost queue
	},
	session.PhaseAwaitConfirmation: {
		session.PhaseDone,            // ticket created and request logged
		session.PhaseAwaitService,    // restart
		session.PhaseAwaitClientCode, // profile missing from state
	},
	session.PhaseDone: {
		session.PhaseAwaitService,    // start new request
		session.PhaseAwaitClientCode, // start new request without a profile
	},
}

// IsValidTransition reports whether the engine may move from one phase to another.
func IsValidTransition(from, to session.Phase) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidNextPhases returns the phases reachable from a phase.
func ValidNextPhases(from session.Phase) []session.Phase {
	return append([]session.Phase(nil), validTransitions[from]...)
}

// AllPhases lists every phase in flow order.
func AllPhases() []session.Phase {
	return []session.Phase{
		session.PhaseAwaitClientCode,
		session.PhaseAwaitService,
		session.PhaseAwaitQuestion,
		session.PhaseAwaitConfirmation,
		session.PhaseDone,
	}
}

// Intent patterns.
var (
	submitPattern   = regexp.MustCompile(`(?i)\b(yes|y|submit|confirm|ok|okay|send|go ahead)\b`)
	restartPattern  = regexp.MustCompile(`(?i)\b(restart|start over|reset|edit|change|new request|another request)\b`)
	helpPattern     = regexp.MustCompile(`(?i)\b(help|what can you do|how does this work)\b`)
	greetingPattern = regexp.MustCompile(`(?i)\b(hi|hello|hey|good morning|good afternoon|good evening|yo|hiya)\b`)
	identityPattern = regexp.MustCompile(`(?i)\b(who are you|what are you|what is this|what can you do|how do you work)\b`)
	namePattern     = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|this is|its)\s+([A-Za-z][A-Za-z\-']{1,40})\b`)
	confirmPattern  = regexp.MustCompile(`(?i)^(yes|y|correct|right|exactly|that works|looks good)$`)
	rejectPattern   = regexp.MustCompile(`(?i)^(no|n|not that|wrong|change it)$`)

	// restartCommand only matches a message that is nothing but a restart request, so
	// free-text answers such as "change the header" are not mistaken for one.
	restartCommand = regexp.MustCompile(`(?i)^\s*(restart|start over|reset|new request|start new request|another request)\s*[.!]?\s*$`)
	startNewPhrase = regexp.MustCompile(`(?i)start new request`)
	digitPattern   = regexp.MustCompile(`\d`)
	letterPattern  = regexp.MustCompile(`[A-Za-z]`)
)
