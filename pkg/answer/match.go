package answer

import (
	"regexp"
	"strings"
)

// Scores assigned by MatchOption.
const (
	ScoreExact     = 1.0
	ScoreYesNo     = 0.99
	ScoreSubstring = 0.92
	ScoreAlias     = 0.78

	// MinSimilarity is the lowest similarity ratio accepted as a match.
	MinSimilarity = 0.5
)

var (
	skipPattern = regexp.MustCompile(`(?i)^(skip|none|na|n/a|not applicable)$`)
	yesPattern  = regexp.MustCompile(`(?i)^(yes|y|yeah|yep|sure|affirmative)$`)
	noPattern   = regexp.MustCompile(`(?i)^(no|n|nope|negative)$`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
)

// aliases maps a keyword in the input to a fragment searched for in option labels.
// Order matters: the first keyword present wins.
var aliases = []struct{ keyword, fragment string }{
	{"campaign", "campaign"},
	{"graphic", "graphic"},
	{"newsletter", "newsletter"},
	{"press", "press release"},
	{"other", "other"},
	{"urgent", "urgent"},
	{"soon", "soon"},
	{"standard", "standard"},
}

// NormalizeText lowercases and collapses every run of non-alphanumerics to one space.
func NormalizeText(value string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(value), " "))
}

// IsSkip reports whether text is one of the skip phrases.
func IsSkip(text string) bool {
	return skipPattern.MatchString(strings.TrimSpace(text))
}

// MatchOption scores text against options and returns the best canonical option, or
// ("", 0) when nothing clears MinSimilarity and no alias applies.
func MatchOption(text string, options []string) (string, float64) {
	if len(options) == 0 {
		return "", 0
	}

	byNormalized := make(map[string]string, len(options))
	for _, option := range options {
		key := NormalizeText(option)
		if _, exists := byNormalized[key]; !exists {
			byNormalized[key] = option
		}
	}

	yes, hasYes := byNormalized["yes"]
	no, hasNo := byNormalized["no"]
	if hasYes && hasNo {
		trimmed := strings.TrimSpace(text)
		if yesPattern.MatchString(trimmed) {
			return yes, ScoreYesNo
		}
		if noPattern.MatchString(trimmed) {
			return no, ScoreYesNo
		}
	}

	if option, score := matchBySimilarity(text, options); option != "" && score >= MinSimilarity {
		return option, score
	}

	normalizedInput := NormalizeText(text)
	for _, alias := range aliases {
		if !strings.Contains(normalizedInput, alias.keyword) {
			continue
		}
		for _, option := range options {
			if strings.Contains(NormalizeText(option), alias.fragment) {
				return option, ScoreAlias
			}
		}
	}
	return "", 0
}

func matchBySimilarity(text string, options []string) (string, float64) {
	normalizedInput := NormalizeText(text)
	if normalizedInput == "" {
		return "", 0
	}

	best, bestScore := "", 0.0
	for _, option := range options {
		normalizedOption := NormalizeText(option)
		if normalizedOption == normalizedInput {
			return option, ScoreExact
		}
		var score float64
		if normalizedOption != "" && (strings.Contains(normalizedOption, normalizedInput) || strings.Contains(normalizedInput, normalizedOption)) {
			score = ScoreSubstring
		} else {
			score = Ratio(normalizedInput, normalizedOption)
		}
		if score > bestScore {
			best, bestScore = option, score
		}
	}
	return best, bestScore
}
