package answer

import (
	"regexp"
	"strings"
)

var (
	codePhrase    = regexp.MustCompile(`(?i)\b(?:client\s*(?:id|code)|id|code)\s*(?:is|=|:)?\s*([A-Za-z0-9_-]{3,64})\b`)
	codeToken     = regexp.MustCompile(`[A-Za-z0-9_-]{3,64}`)
	hasLetter     = regexp.MustCompile(`[A-Za-z]`)
	hasDigit      = regexp.MustCompile(`\d`)
	codeMention   = regexp.MustCompile(`(?i)\b(client\s*(?:id|code)|id|code)\b`)
	bareCodeToken = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)
)

var codeStopWords = map[string]bool{
	"my": true, "client": true, "code": true, "id": true, "is": true, "name": true, "the": true,
	"for": true, "hello": true, "hi": true, "please": true, "thanks": true, "support": true,
}

// ExtractCodeCandidates returns uppercase client code candidates in first-seen order.
// Explicit "client code is X" phrasing comes first, then tokens mixing letters and digits.
func ExtractCodeCandidates(text string) []string {
	var candidates []string

	for _, match := range codePhrase.FindAllStringSubmatch(text, -1) {
		if upper := strings.ToUpper(strings.TrimSpace(match[1])); upper != "" {
			candidates = append(candidates, upper)
		}
	}

	for _, token := range codeToken.FindAllString(text, -1) {
		if codeStopWords[strings.ToLower(token)] {
			continue
		}
		if !HasLetterAndDigit(token) {
			continue
		}
		candidates = append(candidates, strings.ToUpper(token))
	}

	return Dedupe(candidates)
}

// LooksLikeCodeAttempt reports whether a pre-authentication message should be treated as a
// code submission rather than small talk.
func LooksLikeCodeAttempt(text string, candidates []string) bool {
	if len(candidates) > 0 {
		return true
	}
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return false
	}
	if codeMention.MatchString(stripped) {
		return true
	}
	if bareCodeToken.MatchString(stripped) {
		if hasDigit.MatchString(stripped) {
			return true
		}
		if strings.ToUpper(stripped) == stripped && len(stripped) >= 6 {
			return true
		}
	}
	return false
}

// HasLetterAndDigit reports whether s contains at least one ASCII letter and one digit.
func HasLetterAndDigit(s string) bool {
	return hasLetter.MatchString(s) && hasDigit.MatchString(s)
}

// Dedupe removes case-insensitive duplicates, keeping the first spelling seen.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		key := strings.ToUpper(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, value)
	}
	return unique
}
