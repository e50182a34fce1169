package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// Match criterion weights. They sum to 100.
const (
	weightCategory      = 25.0
	weightBudget        = 25.0
	weightMRR           = 15.0
	weightBusinessModel = 10.0
	weightTechnology    = 10.0
	weightDealType      = 10.0
	weightAge           = 5.0
)

// budgetStretch is how far over budget a listing still earns partial credit
const budgetStretch = 1.2

// MaxMatchCandidates bounds how many approved listings are scored per request
const MaxMatchCandidates = 500

// ScoreListing scores a listing 0-100 against a buyer's answers. Only the
// criteria the buyer answered count, so a buyer who only picked categories
// is scored on category alone. Unanswered questionnaires score 0.
func ScoreListing(a *model.PreferencesAnswers, p *model.Product, now time.Time) (int, []*model.MatchReason) {
	var reasons []*model.MatchReason
	add := func(criterion string, weight, score float64, detail string) {
		reasons = append(reasons, &model.MatchReason{Criterion: criterion, Weight: weight, Score: score, Detail: detail})
	}

	if len(a.Categories) > 0 {
		if containsString(a.Categories, p.Category) {
			add("category", weightCategory, 1, "in a category you follow")
		} else {
			add("category", weightCategory, 0, "outside your categories")
		}
	}

	if a.BudgetMin > 0 || a.BudgetMax > 0 {
		price := listingPrice(p, now)
		switch {
		case price < a.BudgetMin:
			add("budget", weightBudget, 0.5, "below your budget range")
		case a.BudgetMax == 0 || price <= a.BudgetMax:
			add("budget", weightBudget, 1, "within your budget")
		case float64(price) <= float64(a.BudgetMax)*budgetStretch:
			add("budget", weightBudget, 0.5, "slightly over your budget")
		default:
			add("budget", weightBudget, 0, "over your budget")
		}
	}

	if a.MinMRR > 0 {
		switch {
		case p.MonthlyRevenue >= a.MinMRR:
			add("mrr", weightMRR, 1, "meets your revenue minimum")
		case float64(p.MonthlyRevenue) >= float64(a.MinMRR)*0.75:
			add("mrr", weightMRR, 0.5, "close to your revenue minimum")
		default:
			add("mrr", weightMRR, 0, "below your revenue minimum")
		}
	}

	if len(a.BusinessModels) > 0 {
		if containsString(a.BusinessModels, p.BusinessModel) {
			add("business_model", weightBusinessModel, 1, "a business model you want")
		} else {
			add("business_model", weightBusinessModel, 0, "a different business model")
		}
	}

	wanted := append(append([]string(nil), a.TechStack...), a.AIModels...)
	if len(wanted) > 0 {
		have := make(map[string]bool)
		for _, t := range append(append([]string(nil), p.TechStack...), p.AIModels...) {
			have[strings.ToLower(strings.TrimSpace(t))] = true
		}
		matched := 0
		for _, t := range wanted {
			if have[strings.ToLower(strings.TrimSpace(t))] {
				matched++
			}
		}
		add("technology", weightTechnology, float64(matched)/float64(len(wanted)),
			fmt.Sprintf("%d of %d preferred technologies", matched, len(wanted)))
	}

	if len(a.DealTypes) > 0 {
		if containsString(a.DealTypes, string(p.ListingType)) {
			add("deal_type", weightDealType, 1, "sells the way you want to buy")
		} else {
			add("deal_type", weightDealType, 0, "a different sale format")
		}
	}

	if a.MaxAgeMonths != nil {
		if p.AgeMonths <= *a.MaxAgeMonths {
			add("age", weightAge, 1, "within your age limit")
		} else {
			add("age", weightAge, 0, "older than your age limit")
		}
	}

	var earned, possible float64
	for _, r := range reasons {
		earned += r.Weight * r.Score
		possible += r.Weight
	}
	if possible == 0 {
		return 0, reasons
	}
	score := int(math.Round(earned / possible * 100))
	return max(0, min(100, score)), reasons
}

// listingPrice is the asking price, or the live price for auctions
func listingPrice(p *model.Product, now time.Time) int64 {
	if p.IsAuction() {
		return CurrentPrice(p.Auction, now)
	}
	return p.AskingPrice
}

// PreferencesRepository stores buyer questionnaire answers
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (*model.InvestorPreferences, error)
	Upsert(ctx context.Context, prefs *model.InvestorPreferences) (*model.InvestorPreferences, error)
}

// BuyerLeadRepository stores anonymous questionnaire completions
type BuyerLeadRepository interface {
	CreateBuyerLead(ctx context.Context, lead *model.BuyerMatchingLead) error
}

// ApprovedListingSource lists the listings available for matching
type ApprovedListingSource interface {
	ListApproved(ctx context.Context, limit int) ([]*model.Product, error)
}

// MatchingService handles buyer preferences and listing matches
type MatchingService struct {
	prefsRepo   PreferencesRepository
	leadRepo    BuyerLeadRepository
	listings    ApprovedListingSource
	profileRepo ProfileRepository
	now         func() time.Time
}

// MatchingServiceConfig holds configuration for the matching service
type MatchingServiceConfig struct {
	PrefsRepo   PreferencesRepository
	LeadRepo    BuyerLeadRepository
	Listings    ApprovedListingSource
	ProfileRepo ProfileRepository
}

// NewMatchingService creates a new matching service
func NewMatchingService(cfg MatchingServiceConfig) *MatchingService {
	return &MatchingService{
		prefsRepo:   cfg.PrefsRepo,
		leadRepo:    cfg.LeadRepo,
		listings:    cfg.Listings,
		profileRepo: cfg.ProfileRepo,
		now:         time.Now,
	}
}

// GetPreferences returns the caller's saved preferences
func (s *MatchingService) GetPreferences(ctx context.Context, userID string) (*model.InvestorPreferences, error) {
	return s.prefsRepo.Get(ctx, userID)
}

// SavePreferences replaces the caller's questionnaire answers
func (s *MatchingService) SavePreferences(ctx context.Context, userID string, a *model.PreferencesAnswers) (*model.InvestorPreferences, error) {
	prefs := &model.InvestorPreferences{UserID: userID}
	prefs.Apply(*a)
	return s.prefsRepo.Upsert(ctx, prefs)
}

// SubmitBuyerLead stores an anonymous questionnaire completion
func (s *MatchingService) SubmitBuyerLead(ctx context.Context, req *model.SubmitBuyerLeadRequest, userID *string) (*model.BuyerMatchingLead, error) {
	lead := &model.BuyerMatchingLead{
		Email:   strings.TrimSpace(req.Email),
		UserID:  userID,
		Answers: req.Answers,
	}
	if err := s.leadRepo.CreateBuyerLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save buyer lead: %w", err)
	}
	return lead, nil
}

// MatchListings scores approved listings against the caller's saved
// preferences and returns the best limit matches
func (s *MatchingService) MatchListings(ctx context.Context, viewer Viewer, limit int) ([]*model.ListingMatch, error) {
	prefs, err := s.prefsRepo.Get(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return []*model.ListingMatch{}, nil
	}
	if !viewer.IsAdmin && s.profileRepo != nil {
		profile, err := s.profileRepo.GetByUserID(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		viewer.Subscribed = profile.HasActiveSubscription(s.now())
	}

	candidates, err := s.listings.ListApproved(ctx, MaxMatchCandidates)
	if err != nil {
		return nil, err
	}

	now := s.now()
	answers := prefs.Answers()
	matches := make([]*model.ListingMatch, 0, len(candidates))
	for _, p := range candidates {
		if p.SellerID == viewer.UserID {
			continue
		}
		score, reasons := ScoreListing(&answers, p, now)
		matches = append(matches, &model.ListingMatch{
			Listing: BuildListingView(p, viewer, now),
			Score:   score,
			Reasons: reasons,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
