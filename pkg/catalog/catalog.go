// Package catalog holds the intake question set and builds per-service question queues.
package catalog

// QuestionType is the value type a question expects.
type QuestionType string

const (
	TypeText   QuestionType = "text"
	TypeChoice QuestionType = "choice"
	TypeDate   QuestionType = "date"
)

// Question describes one intake field. Values are never mutated after construction.
type Question struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Type     QuestionType `json:"question_type"`
	Required bool         `json:"required"`
	Options  []string     `json:"options"`
}

// IsChoice reports whether the question is answered from a closed option set.
func (q Question) IsChoice() bool { return q.Type == TypeChoice }

// FallbackBranch is used when a service type has no branch of its own.
const FallbackBranch = "Other"

// Time sensitivity levels.
const (
	UrgencyStandard = "Standard"
	UrgencySoon     = "Soon"
	UrgencyUrgent   = "Urgent"
)

// UrgencyLevels lists the accepted time_sensitivity values.
var UrgencyLevels = []string{UrgencyStandard, UrgencySoon, UrgencyUrgent}

var yesNo = []string{"Yes", "No"}

func text(id, label string) Question {
	return Question{ID: id, Label: label, Type: TypeText, Required: true, Options: []string{}}
}

func optional(id, label string) Question {
	return Question{ID: id, Label: label, Type: TypeText, Required: false, Options: []string{}}
}

func choice(id, label string, options []string) Question {
	return Question{ID: id, Label: label, Type: TypeChoice, Required: true, Options: append([]string(nil), options...)}
}

var coreQuestions = []Question{
	text("project_title", "Project Title"),
	text("goal", "Goal (desired outcome)"),
	text("target_audience", "Target Audience"),
	text("primary_cta", "Primary CTA"),
	choice("time_sensitivity", "Time Sensitivity", UrgencyLevels),
	{ID: "due_date", Label: "Due Date", Type: TypeDate, Required: true, Options: []string{}},
	text("approver", "Approver"),
	text("required_elements", "Required elements (logos, disclaimers, QR codes, etc.)"),
	optional("references", "References / links (comma-separated)"),
}

func graphicBranch() []Question {
	return []Question{
		text("dimensions", "Dimensions / format"),
		choice("copy_provided", "Copy provided?", yesNo),
		choice("bilingual", "Bilingual?", yesNo),
		text("image_source", "Stock or provided images?"),
		optional("accessibility", "Accessibility requirements"),
	}
}

func newsletterBranch() []Question {
	return []Question{
		text("newsletter_tone", "Internal or external tone"),
		text("sections", "Sections required"),
		text("content_status", "Content provided or drafted?"),
		optional("metrics", "Metrics to include"),
		text("distribution", "Distribution channel"),
	}
}

func pressBranch() []Question {
	return []Question{
		text("announcement_summary", "Announcement summary"),
		choice("quotes_needed", "Quotes needed?", yesNo),
		choice("boilerplate", "Boilerplate inclusion", yesNo),
		text("media_targets", "Media targets"),
		optional("assets_needed", "Assets needed"),
	}
}

var branchQuestions = map[string][]Question{
	"Custom graphic":                      graphicBranch(),
	"Moderate layout graphic":             graphicBranch(),
	"Internal newsletter (up to 3 pages)": newsletterBranch(),
	"External newsletter (up to 3 pages)": newsletterBranch(),
	"Press release":                       pressBranch(),
	"Press release package":               pressBranch(),
	"Campaign set (up to 6 assets)": {
		text("channels", "Channels required"),
		text("asset_list", "Asset list"),
		text("launch_timeline", "Launch timeline"),
		choice("paid_promo", "Paid promotion required?", yesNo),
	},
	FallbackBranch: {
		text("open_description", "Open description"),
		text("desired_output", "Desired output format"),
		optional("clarifications", "Clarifying follow-ups"),
	},
}

// AttachmentQuestion is appended to every queue.
var AttachmentQuestion = optional("uploaded_files", "Any files to attach? Share filenames or links.")

// DefaultServiceOptions is the service list used when neither the store nor the profile has one.
var DefaultServiceOptions = []string{
	"Campaign set (up to 6 assets)",
	"Custom graphic",
	"Moderate layout graphic",
	"Internal newsletter (up to 3 pages)",
	"External newsletter (up to 3 pages)",
	"Press release",
	"Press release package",
	"Other",
}

// CoreQuestions returns a copy of the fixed core question list.
func CoreQuestions() []Question {
	return cloneAll(coreQuestions)
}

// BranchQuestions returns a copy of every service branch, keyed by service label.
func BranchQuestions() map[string][]Question {
	out := make(map[string][]Question, len(branchQuestions))
	for service, questions := range branchQuestions {
		out[service] = cloneAll(questions)
	}
	return out
}

// Branch returns the branch for serviceType and whether it was found. Unknown service
// types get the fallback branch.
func Branch(serviceType string) ([]Question, bool) {
	if questions, ok := branchQuestions[serviceType]; ok {
		return cloneAll(questions), true
	}
	return cloneAll(branchQuestions[FallbackBranch]), false
}

// BuildQueue returns core questions, the branch for serviceType and the trailing
// attachment question.
func BuildQueue(serviceType string) []Question {
	branch, _ := Branch(serviceType)
	queue := make([]Question, 0, len(coreQuestions)+len(branch)+1)
	queue = append(queue, CoreQuestions()...)
	queue = append(queue, branch...)
	queue = append(queue, clone(AttachmentQuestion))
	return queue
}

// CoreFields are payload fields with a dedicated slot. Anything else is a branch answer.
var CoreFields = map[string]bool{
	"project_title":     true,
	"goal":              true,
	"target_audience":   true,
	"primary_cta":       true,
	"time_sensitivity":  true,
	"due_date":          true,
	"approver":          true,
	"required_elements": true,
	"references":        true,
	"uploaded_files":    true,
	"notes":             true,
}

func clone(q Question) Question {
	q.Options = append([]string{}, q.Options...)
	return q
}

func cloneAll(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = clone(q)
	}
	return out
}
