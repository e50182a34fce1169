package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// baseMultiples are the ARR multiple ranges per business model
var baseMultiples = map[string][2]float64{
	"subscription": {3.0, 5.0},
	"usage_based":  {2.5, 4.5},
	"marketplace":  {2.5, 4.0},
	"freemium":     {2.0, 3.5},
	"one_time":     {1.5, 2.5},
}

// minMultiple keeps a revenue-generating business above zero
const minMultiple = 0.5

// maxValuation caps results so float conversion stays in range
const maxValuation = int64(1) << 53

type valuationRule struct {
	name  string
	apply func(a *model.ValuationAnswers) (float64, string)
}

var valuationRules = []valuationRule{
	{"growth", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.GrowthRate >= 20:
			return 1.5, "exceptional monthly growth"
		case a.GrowthRate >= 10:
			return 1.0, "strong monthly growth"
		case a.GrowthRate >= 5:
			return 0.5, "healthy monthly growth"
		case a.GrowthRate < 0:
			return -0.75, "shrinking revenue"
		}
		return 0, ""
	}},
	{"churn", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.ChurnRate <= 2:
			return 0.5, "low churn"
		case a.ChurnRate > 10:
			return -1.0, "very high churn"
		case a.ChurnRate > 5:
			return -0.5, "high churn"
		}
		return 0, ""
	}},
	{"profit_margin", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.ProfitMargin >= 40:
			return 0.75, "high profit margin"
		case a.ProfitMargin >= 20:
			return 0.25, "solid profit margin"
		case a.ProfitMargin < 0:
			return -0.5, "operating at a loss"
		}
		return 0, ""
	}},
	{"age", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.AgeMonths < 6:
			return -0.75, "less than six months of history"
		case a.AgeMonths < 12:
			return -0.25, "less than a year of history"
		case a.AgeMonths >= 36:
			return 0.5, "three or more years of history"
		}
		return 0, ""
	}},
	{"ai_dependency", func(a *model.ValuationAnswers) (float64, string) {
		switch a.AIDependency {
		case model.AIProprietary:
			return 0.75, "proprietary models"
		case model.AIFineTuned:
			return 0.25, "fine-tuned models"
		case model.AIAPIWrapper:
			return -0.5, "depends on third-party model APIs"
		}
		return 0, ""
	}},
	{"customers", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.Customers >= 1000:
			return 0.5, "broad customer base"
		case a.Customers < 10:
			return -0.5, "concentrated customer base"
		}
		return 0, ""
	}},
	{"founder_time", func(a *model.ValuationAnswers) (float64, string) {
		switch {
		case a.FounderHoursPerWeek > 40:
			return -0.5, "needs full-time founder involvement"
		case a.FounderHoursPerWeek <= 10:
			return 0.25, "runs with little founder time"
		}
		return 0, ""
	}},
}

// CalculateValuation estimates a sale price range from the quiz answers.
// The range is ARR times a multiple range picked by business model and
// shifted by each factor. For every valid input 0 <= low <= high.
func CalculateValuation(a *model.ValuationAnswers) *model.ValuationResult {
	base, ok := baseMultiples[a.BusinessModel]
	if !ok {
		base = baseMultiples["one_time"]
	}

	result := &model.ValuationResult{Factors: []*model.ValuationFactor{}}
	adjust := 0.0
	for _, rule := range valuationRules {
		delta, detail := rule.apply(a)
		if delta == 0 {
			continue
		}
		adjust += delta
		result.Factors = append(result.Factors, &model.ValuationFactor{Name: rule.name, Adjustment: delta, Detail: detail})
	}

	low := math.Max(minMultiple, base[0]+adjust)
	high := math.Max(low, base[1]+adjust)
	result.MultipleLow = math.Round(low*100) / 100
	result.MultipleHigh = math.Round(high*100) / 100

	mrr := a.MonthlyRevenue
	if mrr < 0 {
		mrr = 0
	}
	if mrr > maxValuation/12 {
		mrr = maxValuation / 12
	}
	result.ARR = mrr * 12
	result.Low = scaleCents(result.ARR, result.MultipleLow)
	result.High = scaleCents(result.ARR, result.MultipleHigh)
	result.Mid = result.Low + (result.High-result.Low)/2
	return result
}

func scaleCents(cents int64, multiple float64) int64 {
	v := math.Round(float64(cents) * multiple)
	if v >= float64(maxValuation) {
		return maxValuation
	}
	if v < 0 {
		return 0
	}
	return int64(v)
}

// ValuationLeadRepository stores completed quizzes
type ValuationLeadRepository interface {
	CreateValuationLead(ctx context.Context, lead *model.ValuationLead) error
	ListValuationLeadsByUser(ctx context.Context, userID string) ([]*model.ValuationLead, error)
}

// ValuationService handles the valuation quiz
type ValuationService struct {
	leadRepo ValuationLeadRepository
	now      func() time.Time
}

// NewValuationService creates a new valuation service
func NewValuationService(leadRepo ValuationLeadRepository) *ValuationService {
	return &ValuationService{leadRepo: leadRepo, now: time.Now}
}

// Calculate values the answers without storing anything
func (s *ValuationService) Calculate(a *model.ValuationAnswers) *model.ValuationResult {
	return CalculateValuation(a)
}

// SubmitLead stores the quiz and its result against the email. userID is
// attached when the caller is signed in.
func (s *ValuationService) SubmitLead(ctx context.Context, req *model.SubmitValuationLeadRequest, userID *string) (*model.ValuationLead, error) {
	lead := &model.ValuationLead{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		UserID:    userID,
		Answers:   req.Answers,
		Result:    *CalculateValuation(&req.Answers),
		CreatedOn: s.now(),
	}
	if err := s.leadRepo.CreateValuationLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save valuation lead: %w", err)
	}
	return lead, nil
}

// ListMine returns the caller's stored valuations
func (s *ValuationService) ListMine(ctx context.Context, userID string) ([]*model.ValuationLead, error) {
	return s.leadRepo.ListValuationLeadsByUser(ctx, userID)
}
