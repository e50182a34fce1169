package service

import (
	"context"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// LeadCounter counts stored leads for the dashboard
type LeadCounter interface {
	CountLeads(ctx context.Context) (valuation int, buyer int, err error)
}

// ModerationService handles admin review of listings
type ModerationService struct {
	productRepo ProductRepository
	escrowRepo  EscrowRepository
	profileRepo ProfileRepository
	leads       LeadCounter
	notifier    *Notifier
	events      Publisher
	now         func() time.Time
}

// ModerationServiceConfig holds configuration for the moderation service
type ModerationServiceConfig struct {
	ProductRepo ProductRepository
	EscrowRepo  EscrowRepository
	ProfileRepo ProfileRepository
	Leads       LeadCounter
	Notifier    *Notifier
	Events      Publisher
}

// NewModerationService creates a new moderation service
func NewModerationService(cfg ModerationServiceConfig) *ModerationService {
	return &ModerationService{
		productRepo: cfg.ProductRepo,
		escrowRepo:  cfg.EscrowRepo,
		profileRepo: cfg.ProfileRepo,
		leads:       cfg.Leads,
		notifier:    cfg.Notifier,
		events:      cfg.Events,
		now:         time.Now,
	}
}

// ListPendingListings returns listings waiting for review, oldest submission first
func (s *ModerationService) ListPendingListings(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	if limit <= 0 {
		limit = model.DefaultBrowseLimit
	}
	return s.productRepo.ListByStatus(ctx, model.ListingStatusPendingReview, min(limit, model.MaxBrowseLimit), offset)
}

// ModerateListing approves or rejects a listing under review and tells the
// seller. The email never blocks the decision.
func (s *ModerationService) ModerateListing(ctx context.Context, adminID, id string, req *model.ModerateListingRequest) (*model.Product, error) {
	status := model.ListingStatusApproved
	if req.Decision == model.DecisionReject {
		status = model.ListingStatusRejected
	}
	var feedback *string
	if req.Feedback != "" {
		feedback = &req.Feedback
	}

	p, err := s.productRepo.Review(ctx, id, status, feedback, adminID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		existing, err := s.productRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrListingNotFound
		}
		return nil, ErrListingNotPending
	}

	s.notifier.ListingReviewed(ctx, p)
	publish(s.events, p.SellerID, EventListingReviewed, map[string]interface{}{
		"product_id": p.ID,
		"status":     p.Status,
		"feedback":   p.AdminFeedback,
	})
	return p, nil
}

// FeatureListing turns a featured placement on for days (0 means no end) or off
func (s *ModerationService) FeatureListing(ctx context.Context, id string, req *model.FeatureListingRequest) (*model.Product, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}

	var until *time.Time
	if req.Featured && req.Days > 0 {
		t := s.now().Add(time.Duration(req.Days) * 24 * time.Hour)
		until = &t
	}
	if err := s.productRepo.SetFeatured(ctx, id, req.Featured, until, nil); err != nil {
		return nil, err
	}
	p.Featured = req.Featured
	p.FeaturedUntil = until
	return p, nil
}

// GetAdminStats summarizes the marketplace for the dashboard
func (s *ModerationService) GetAdminStats(ctx context.Context) (*model.AdminStats, error) {
	listings, err := s.productRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	escrows, err := s.escrowRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	subscriptions, err := s.profileRepo.CountActiveSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	volume, err := s.escrowRepo.CompletedVolume(ctx)
	if err != nil {
		return nil, err
	}
	valuationLeads, buyerLeads, err := s.leads.CountLeads(ctx)
	if err != nil {
		return nil, err
	}

	return &model.AdminStats{
		ListingsByStatus:    listings,
		EscrowsByStatus:     escrows,
		PendingReview:       listings[string(model.ListingStatusPendingReview)],
		ActiveSubscriptions: subscriptions,
		CompletedVolume:     volume,
		ValuationLeads:      valuationLeads,
		BuyerLeads:          buyerLeads,
	}, nil
}
