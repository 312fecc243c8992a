package intake

import "intake/pkg/catalog"

// SampleClientCode is the development client seeded into fresh stores.
const SampleClientCode = "READYONE01"

// SampleProfile returns the seeded development client.
func SampleProfile() *Profile {
	return &Profile{
		ClientCode:          SampleClientCode,
		ClientName:          "ReadyOne Industries",
		BrandVoiceRules:     "Direct, confident, workforce-centered. Avoid corporate fluff.",
		WordsToAvoid:        []string{"empowerment journey", "disruption"},
		RequiredDisclaimers: "EOE employer statement required on recruitment materials.",
		PreferredTone:       "confident and straightforward",
		CommonAudiences:     []string{"job seekers", "employers", "internal staff"},
		DefaultApprover:     "Lupita R.",
		SubscriptionTier:    "Tier 2",
		CreditMenu: map[string]int{
			"custom_graphic":      25,
			"newsletter_internal": 75,
			"newsletter_external": 90,
			"press_release":       90,
			"campaign_set":        85,
		},
		TurnaroundRules: "Urgent requests should include business impact in notes.",
		ComplianceNotes: "Use EOE disclaimer where required.",
		ServiceOptions:  append([]string{}, catalog.DefaultServiceOptions...),
	}
}
