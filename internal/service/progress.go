package service

import (
	"context"
	"fmt"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// MergePreferences reconciles questionnaire answers kept in the browser with
// the stored copy. Without stored answers the local copy wins. When both
// exist the newer one wins and its empty answers are filled from the other.
func MergePreferences(server *model.InvestorPreferences, local *model.PreferencesAnswers, localSavedAt *time.Time) (model.PreferencesAnswers, model.MergeSource) {
	localEmpty := local == nil || local.IsEmpty()
	switch {
	case server == nil && localEmpty:
		return model.PreferencesAnswers{}, model.MergeSourceNone
	case server == nil:
		return *local, model.MergeSourceLocal
	case localEmpty:
		return server.Answers(), model.MergeSourceServer
	}

	stored := server.Answers()
	localNewer := localSavedAt != nil && localSavedAt.After(server.UpdatedOn)

	winner, other, source := stored, *local, model.MergeSourceServer
	if localNewer {
		winner, other, source = *local, stored, model.MergeSourceLocal
	}
	if fillAnswers(&winner, &other) {
		source = model.MergeSourceMerged
	}
	return winner, source
}

// fillAnswers copies answers missing from dst out of src and reports
// whether anything was copied
func fillAnswers(dst, src *model.PreferencesAnswers) bool {
	filled := false
	fillSlice := func(d *[]string, s []string) {
		if len(*d) == 0 && len(s) > 0 {
			*d = s
			filled = true
		}
	}
	fillString := func(d *string, s string) {
		if *d == "" && s != "" {
			*d = s
			filled = true
		}
	}
	fillInt := func(d *int64, s int64) {
		if *d == 0 && s != 0 {
			*d = s
			filled = true
		}
	}

	fillSlice(&dst.Categories, src.Categories)
	fillSlice(&dst.BusinessModels, src.BusinessModels)
	fillSlice(&dst.TechStack, src.TechStack)
	fillSlice(&dst.DealTypes, src.DealTypes)
	fillSlice(&dst.AIModels, src.AIModels)
	fillString(&dst.Timeline, src.Timeline)
	fillString(&dst.Involvement, src.Involvement)
	fillInt(&dst.MinMRR, src.MinMRR)
	// The budget range moves as a pair so min never ends up above max
	if dst.BudgetMin == 0 && dst.BudgetMax == 0 && (src.BudgetMin != 0 || src.BudgetMax != 0) {
		dst.BudgetMin, dst.BudgetMax = src.BudgetMin, src.BudgetMax
		filled = true
	}
	if dst.MaxAgeMonths == nil && src.MaxAgeMonths != nil {
		v := *src.MaxAgeMonths
		dst.MaxAgeMonths = &v
		filled = true
	}
	return filled
}

// LeadLinker attaches anonymous leads to an account
type LeadLinker interface {
	LinkByEmail(ctx context.Context, userID string, emails []string) (valuation int, buyer int, err error)
}

// ProgressService merges anonymous browser progress into an account on sign-in
type ProgressService struct {
	prefsRepo PreferencesRepository
	leads     LeadLinker
	valuation *ValuationService
	userRepo  UserRepository
}

// ProgressServiceConfig holds configuration for the progress service
type ProgressServiceConfig struct {
	PrefsRepo PreferencesRepository
	Leads     LeadLinker
	Valuation *ValuationService
	UserRepo  UserRepository
}

// NewProgressService creates a new progress service
func NewProgressService(cfg ProgressServiceConfig) *ProgressService {
	return &ProgressService{
		prefsRepo: cfg.PrefsRepo,
		leads:     cfg.Leads,
		valuation: cfg.Valuation,
		userRepo:  cfg.UserRepo,
	}
}

// MergeProgress folds local preferences, quiz answers and anonymous leads
// into the signed-in user's account
func (s *ProgressService) MergeProgress(ctx context.Context, userID string, req *model.MergeProgressRequest) (*model.MergeProgressResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	result := &model.MergeProgressResult{PreferencesSource: model.MergeSourceNone}

	server, err := s.prefsRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged, source := MergePreferences(server, req.Preferences, req.PreferencesSavedAt)
	result.PreferencesSource = source
	switch source {
	case model.MergeSourceLocal, model.MergeSourceMerged:
		prefs := &model.InvestorPreferences{UserID: userID}
		prefs.Apply(merged)
		saved, err := s.prefsRepo.Upsert(ctx, prefs)
		if err != nil {
			return nil, fmt.Errorf("failed to save merged preferences: %w", err)
		}
		result.Preferences = saved
	case model.MergeSourceServer:
		result.Preferences = server
	}

	if req.ValuationAnswers != nil && s.valuation != nil {
		lead, err := s.valuation.SubmitLead(ctx, &model.SubmitValuationLeadRequest{
			Email:   user.Email,
			Answers: *req.ValuationAnswers,
		}, &userID)
		if err != nil {
			return nil, err
		}
		result.Valuation = &lead.Result
	}

	// Only leads left under the account email are claimed. Other addresses
	// the browser remembers are not proof of ownership.
	emails := []string{user.Email}
	valuationLinked, buyerLinked, err := s.leads.LinkByEmail(ctx, userID, emails)
	if err != nil {
		return nil, err
	}
	result.LinkedValuationLeads = valuationLinked
	result.LinkedBuyerLeads = buyerLinked
	return result, nil
}
