package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fencedObject   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	trailingCommas = regexp.MustCompile(`,\s*([}\]])`)
)

// extractObject pulls the first JSON object out of model output, tolerating code fences,
// surrounding prose and trailing commas.
func extractObject(content string) (string, error) {
	raw := ""
	if m := fencedObject.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			raw = content[start : end+1]
		}
	}
	if raw == "" {
		return "", fmt.Errorf("no JSON object in response: %.80q", content)
	}
	raw = trailingCommas.ReplaceAllString(raw, "$1")
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("malformed JSON object in response: %.80q", raw)
	}
	return raw, nil
}

// parseExtraction reads the extraction fields leniently: confidence may arrive as a
// string, ok may be missing when a value is present.
func parseExtraction(content string) (Extraction, error) {
	raw, err := extractObject(content)
	if err != nil {
		return Extraction{}, err
	}
	doc := gjson.Parse(raw)

	value := parseValue(doc.Get("value"))
	ok := doc.Get("ok")
	out := Extraction{
		OK:                    ok.Bool() || (!ok.Exists() && value != nil),
		Value:                 value,
		Confidence:            clamp01(doc.Get("confidence").Float()),
		NeedsClarification:    doc.Get("needs_clarification").Bool(),
		ClarificationQuestion: strings.TrimSpace(doc.Get("clarification_question").String()),
	}
	return out, nil
}

func parseValue(v gjson.Result) any {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil
	case v.IsArray():
		items := []string{}
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				items = append(items, s)
			}
		}
		return items
	case v.IsObject():
		return v.Raw
	default:
		return strings.TrimSpace(v.String())
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
