package answer

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the difflib SequenceMatcher ratio of a and b, compared rune by rune:
// 2*M/T where M is the number of matched characters and T the combined length.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	return strings.Split(s, "")
}
