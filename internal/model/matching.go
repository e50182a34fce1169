package model

import "time"

// Buyer questionnaire enumerations
var (
	BuyerTimelines    = []string{"immediate", "1_3_months", "3_6_months", "exploring"}
	BuyerInvolvements = []string{"passive", "part_time", "full_time"}
)

// InvestorPreferences are a buyer's saved matching questionnaire answers
type InvestorPreferences struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Categories     []string  `json:"categories"`
	BusinessModels []string  `json:"business_models"`
	BudgetMin      int64     `json:"budget_min"`
	BudgetMax      int64     `json:"budget_max"`
	MinMRR         int64     `json:"min_mrr"`
	MaxAgeMonths   *int      `json:"max_age_months,omitempty"`
	TechStack      []string  `json:"tech_stack"`
	DealTypes      []string  `json:"deal_types"`
	Timeline       string    `json:"timeline,omitempty"`
	Involvement    string    `json:"involvement,omitempty"`
	AIModels       []string  `json:"ai_models"`
	CreatedOn      time.Time `json:"created_on"`
	UpdatedOn      time.Time `json:"updated_on"`
}

// PreferencesAnswers is the questionnaire payload, shared by saved
// preferences, anonymous leads and browser progress.
type PreferencesAnswers struct {
	Categories     []string `json:"categories,omitempty" validate:"max=9,dive,oneof=ai_assistant content_generation computer_vision data_analytics developer_tools marketing productivity customer_support other"`
	BusinessModels []string `json:"business_models,omitempty" validate:"max=5,dive,oneof=subscription usage_based one_time freemium marketplace"`
	BudgetMin      int64    `json:"budget_min" validate:"gte=0"`
	BudgetMax      int64    `json:"budget_max" validate:"gte=0"`
	MinMRR         int64    `json:"min_mrr" validate:"gte=0"`
	MaxAgeMonths   *int     `json:"max_age_months,omitempty" validate:"omitempty,gte=0,lte=600"`
	TechStack      []string `json:"tech_stack,omitempty" validate:"max=20,dive,min=1,max=40"`
	DealTypes      []string `json:"deal_types,omitempty" validate:"max=2,dive,oneof=buy_now auction"`
	Timeline       string   `json:"timeline,omitempty" validate:"omitempty,oneof=immediate 1_3_months 3_6_months exploring"`
	Involvement    string   `json:"involvement,omitempty" validate:"omitempty,oneof=passive part_time full_time"`
	AIModels       []string `json:"ai_models,omitempty" validate:"max=10,dive,min=1,max=40"`
}

// Validate validates the questionnaire answers
func (a *PreferencesAnswers) Validate() []FieldError {
	errors := validateStruct(a)
	if a.BudgetMax > 0 && a.BudgetMax < a.BudgetMin {
		errors = append(errors, FieldError{Field: "budget_max", Message: "budget_max must not be below budget_min"})
	}
	return errors
}

// IsEmpty reports whether no question was answered
func (a *PreferencesAnswers) IsEmpty() bool {
	return len(a.Categories) == 0 && len(a.BusinessModels) == 0 && a.BudgetMin == 0 &&
		a.BudgetMax == 0 && a.MinMRR == 0 && a.MaxAgeMonths == nil && len(a.TechStack) == 0 &&
		len(a.DealTypes) == 0 && a.Timeline == "" && a.Involvement == "" && len(a.AIModels) == 0
}

// Answers returns the questionnaire answers stored on the preferences
func (p *InvestorPreferences) Answers() PreferencesAnswers {
	return PreferencesAnswers{
		Categories:     p.Categories,
		BusinessModels: p.BusinessModels,
		BudgetMin:      p.BudgetMin,
		BudgetMax:      p.BudgetMax,
		MinMRR:         p.MinMRR,
		MaxAgeMonths:   p.MaxAgeMonths,
		TechStack:      p.TechStack,
		DealTypes:      p.DealTypes,
		Timeline:       p.Timeline,
		Involvement:    p.Involvement,
		AIModels:       p.AIModels,
	}
}

// Apply copies answers onto the preferences
func (p *InvestorPreferences) Apply(a PreferencesAnswers) {
	p.Categories = a.Categories
	p.BusinessModels = a.BusinessModels
	p.BudgetMin = a.BudgetMin
	p.BudgetMax = a.BudgetMax
	p.MinMRR = a.MinMRR
	p.MaxAgeMonths = a.MaxAgeMonths
	p.TechStack = a.TechStack
	p.DealTypes = a.DealTypes
	p.Timeline = a.Timeline
	p.Involvement = a.Involvement
	p.AIModels = a.AIModels
}

// BuyerMatchingLead is an anonymous completion of the buyer questionnaire
type BuyerMatchingLead struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	UserID    *string            `json:"user_id,omitempty"`
	Answers   PreferencesAnswers `json:"answers"`
	CreatedOn time.Time          `json:"created_on"`
}

// SubmitBuyerLeadRequest submits the questionnaire with a contact email
type SubmitBuyerLeadRequest struct {
	Email   string             `json:"email" validate:"required,email,max=254"`
	Answers PreferencesAnswers `json:"answers"`
}

// Validate validates the buyer lead request
func (r *SubmitBuyerLeadRequest) Validate() []FieldError {
	errors := validateStruct(r)
	if r.Answers.BudgetMax > 0 && r.Answers.BudgetMax < r.Answers.BudgetMin {
		errors = append(errors, FieldError{Field: "answers.budget_max", Message: "budget_max must not be below budget_min"})
	}
	return errors
}

// MatchReason explains one criterion of a match score
type MatchReason struct {
	Criterion string  `json:"criterion"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"` // 0..1
	Detail    string  `json:"detail"`
}

// ListingMatch is a listing scored against a buyer's preferences
type ListingMatch struct {
	Listing *ListingView   `json:"listing"`
	Score   int            `json:"score"` // 0..100
	Reasons []*MatchReason `json:"reasons"`
}
