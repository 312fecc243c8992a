package intake

import (
	"fmt"
	"sort"
	"strings"
)

// FallbackSummary renders a deterministic summary from the payload and profile. It is used
// whenever the model summary is unavailable.
func FallbackSummary(profile *Profile, p *Payload) string {
	clientName, clientCode, defaultApprover := "Unknown", "", ""
	if profile != nil {
		if profile.ClientName != "" {
			clientName = profile.ClientName
		}
		clientCode = profile.ClientCode
		defaultApprover = profile.DefaultApprover
	}

	approver := firstNonEmpty(p.Approver, defaultApprover, "Not specified")
	links := "None provided"
	if len(p.References) > 0 {
		links = strings.Join(p.References, ", ")
	}
	files := "None"
	if len(p.UploadedFiles) > 0 {
		files = strings.Join(p.UploadedFiles, ", ")
	}

	lines := []string{
		fmt.Sprintf("Client: %s (%s)", clientName, clientCode),
		"Project Title: " + p.ProjectTitle,
		"Deliverable: " + p.ServiceType,
		"Goal: " + p.Goal,
		"Audience: " + p.TargetAudience,
		"CTA: " + p.PrimaryCTA,
		"Due Date: " + p.DueDate,
		"Urgency: " + p.TimeSensitivity,
		"Approver: " + approver,
		"Required Elements: " + firstNonEmpty(p.RequiredElements, "None specified"),
		"Links: " + links,
		"Files: " + files,
	}

	if len(p.BranchAnswers) > 0 {
		keys := make([]string, 0, len(p.BranchAnswers))
		for k := range p.BranchAnswers {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines = append(lines, "Branch Details:")
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, Answers(p.BranchAnswers).String(k)))
		}
	}
	if p.Notes != "" {
		lines = append(lines, "Notes: "+p.Notes)
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
