package answer

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ISODate is the output layout for every parsed date.
const ISODate = "2006-01-02"

const minYear = 1900

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d+)(st|nd|rd|th)\b`)
	nextWeekday   = regexp.MustCompile(`^next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	isoDate       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	allDigits     = regexp.MustCompile(`^\d+$`)
	hasDateShape  = regexp.MustCompile(`[A-Za-z/.\-, ]`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// dateLayouts are tried in order after the relative forms.
var dateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"1-2-06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseDate resolves text to an ISO date relative to now. It returns false when the text
// is not a date it understands.
func ParseDate(text string, now time.Time) (string, bool) {
	cleaned := strings.TrimSpace(ordinalSuffix.ReplaceAllString(text, "$1"))
	if cleaned == "" {
		return "", false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lowered := strings.ToLower(cleaned)

	switch lowered {
	case "today":
		return today.Format(ISODate), true
	case "tomorrow", "tmr", "tmrw":
		return today.AddDate(0, 0, 1).Format(ISODate), true
	}

	if m := nextWeekday.FindStringSubmatch(lowered); m != nil {
		days := (int(weekdays[m[1]]) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days).Format(ISODate), true
	}

	if isoDate.MatchString(cleaned) {
		if parsed, err := time.Parse(ISODate, cleaned); err == nil {
			return withYear(parsed)
		}
		return "", false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return withYear(parsed)
		}
	}
	for _, layout := range dateTimeLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return withYear(parsed)
		}
	}

	// Free-form natural dates ("Mar 5th 2026", "5 March, 2026"). Bare numbers are
	// rejected since dateparse reads them as timestamps.
	if allDigits.MatchString(cleaned) || !hasDigit.MatchString(cleaned) || !hasDateShape.MatchString(cleaned) {
		return "", false
	}
	parsed, err := dateparse.ParseIn(cleaned, now.Location())
	if err != nil {
		return "", false
	}
	if parsed.Year() == 0 {
		return nextOccurrence(parsed.Month(), parsed.Day(), today)
	}
	return withYear(parsed)
}

func withYear(t time.Time) (string, bool) {
	if t.Year() < minYear {
		return "", false
	}
	return t.Format(ISODate), true
}

// nextOccurrence places a month and day without a year on or after today. February 29
// moves to the next leap year.
func nextOccurrence(month time.Month, day int, today time.Time) (string, bool) {
	for year := today.Year(); year <= today.Year()+8; year++ {
		candidate := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
		if candidate.Month() != month || candidate.Day() != day || candidate.Before(today) {
			continue
		}
		return candidate.Format(ISODate), true
	}
	return "", false
}
