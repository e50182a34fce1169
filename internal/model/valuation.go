package model

import "time"

// AI dependency levels used by the valuation quiz
const (
	AIProprietary = "proprietary"
	AIFineTuned   = "fine_tuned"
	AIAPIWrapper  = "api_wrapper"
)

// ValuationAnswers are the valuation quiz answers.
// Rates are percentages (4.5 means 4.5% per month).
type ValuationAnswers struct {
	MonthlyRevenue      int64   `json:"monthly_revenue" validate:"gte=0"`
	GrowthRate          float64 `json:"growth_rate" validate:"gte=-100,lte=1000"`
	ChurnRate           float64 `json:"churn_rate" validate:"gte=0,lte=100"`
	ProfitMargin        float64 `json:"profit_margin" validate:"gte=-100,lte=100"`
	AgeMonths           int     `json:"age_months" validate:"gte=0,lte=600"`
	BusinessModel       string  `json:"business_model" validate:"required,oneof=subscription usage_based one_time freemium marketplace"`
	AIDependency        string  `json:"ai_dependency" validate:"required,oneof=proprietary fine_tuned api_wrapper"`
	Customers           int     `json:"customers" validate:"gte=0"`
	FounderHoursPerWeek int     `json:"founder_hours_per_week" validate:"gte=0,lte=168"`
}

// Validate validates the quiz answers
func (a *ValuationAnswers) Validate() []FieldError {
	return validateStruct(a)
}

// ValuationFactor is one multiplier adjustment applied by the valuation
type ValuationFactor struct {
	Name       string  `json:"name"`
	Adjustment float64 `json:"adjustment"` // added to both multiples
	Detail     string  `json:"detail"`
}

// ValuationResult is an estimated sale price range, in cents
type ValuationResult struct {
	ARR          int64              `json:"arr"`
	Low          int64              `json:"low"`
	High         int64              `json:"high"`
	Mid          int64              `json:"mid"`
	MultipleLow  float64            `json:"multiple_low"`
	MultipleHigh float64            `json:"multiple_high"`
	Factors      []*ValuationFactor `json:"factors"`
}

// ValuationLead stores a completed quiz with the contact email
type ValuationLead struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	UserID    *string          `json:"user_id,omitempty"`
	Answers   ValuationAnswers `json:"answers"`
	Result    ValuationResult  `json:"result"`
	CreatedOn time.Time        `json:"created_on"`
}

// SubmitValuationLeadRequest submits the quiz with an email for the report
type SubmitValuationLeadRequest struct {
	Email   string           `json:"email" validate:"required,email,max=254"`
	Answers ValuationAnswers `json:"answers"`
}

// Validate validates the valuation lead request
func (r *SubmitValuationLeadRequest) Validate() []FieldError {
	return validateStruct(r)
}
