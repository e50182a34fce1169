package model

import "time"

// MergeProgressRequest carries browser-stored progress made before sign-in
type MergeProgressRequest struct {
	Preferences        *PreferencesAnswers `json:"preferences,omitempty"`
	PreferencesSavedAt *time.Time          `json:"preferences_saved_at,omitempty"`
	ValuationAnswers   *ValuationAnswers   `json:"valuation_answers,omitempty"`
	LeadEmails         []string            `json:"lead_emails,omitempty" validate:"max=10,dive,email"`
}

// Validate validates the merge request
func (r *MergeProgressRequest) Validate() []FieldError {
	errors := validateStruct(r)
	if r.Preferences != nil && r.Preferences.BudgetMax > 0 && r.Preferences.BudgetMax < r.Preferences.BudgetMin {
		errors = append(errors, FieldError{Field: "preferences.budget_max", Message: "budget_max must not be below budget_min"})
	}
	return errors
}

// MergeSource says which copy of the preferences won
type MergeSource string

const (
	MergeSourceNone   MergeSource = "none"
	MergeSourceServer MergeSource = "server"
	MergeSourceLocal  MergeSource = "local"
	MergeSourceMerged MergeSource = "merged"
)

// MergeProgressResult reports what the merge kept
type MergeProgressResult struct {
	Preferences          *InvestorPreferences `json:"preferences,omitempty"`
	PreferencesSource    MergeSource          `json:"preferences_source"`
	Valuation            *ValuationResult     `json:"valuation,omitempty"`
	LinkedValuationLeads int                  `json:"linked_valuation_leads"`
	LinkedBuyerLeads     int                  `json:"linked_buyer_leads"`
}
