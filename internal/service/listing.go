package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// ProductRepository defines the interface for listing storage
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	UpdateStatus(ctx context.Context, id string, from []model.ListingStatus, to model.ListingStatus) (bool, error)
	Review(ctx context.Context, id string, status model.ListingStatus, feedback *string, reviewerID string) (*model.Product, error)
	SetFeatured(ctx context.Context, id string, featured bool, until *time.Time, pkg *string) error
	Browse(ctx context.Context, f *model.ListingFilter, limit int, now time.Time) ([]*model.Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*model.Product, error)
	ListByStatus(ctx context.Context, status model.ListingStatus, limit, offset int) ([]*model.Product, error)
	ListApproved(ctx context.Context, limit int) ([]*model.Product, error)
	ListAuctionsToFinalize(ctx context.Context, now time.Time) ([]*model.Product, error)
	MarkResultNotified(ctx context.Context, id string, ended bool) error
	AddViews(ctx context.Context, counts map[string]int64) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// NDARepository defines the interface for NDA signatures
type NDARepository interface {
	Sign(ctx context.Context, sig *model.NDASignature) (*model.NDASignature, error)
	Has(ctx context.Context, productID, userID string) (bool, error)
}

// ViewCounter buffers listing views between flushes
type ViewCounter interface {
	Incr(ctx context.Context, productID string) error
	Drain(ctx context.Context) (map[string]int64, error)
}

// OpenBidReleaser cancels the open bids of a listing and releases their holds
type OpenBidReleaser interface {
	ReleaseOpenBids(ctx context.Context, productID string, status model.BidStatus, reason string) (int, error)
}

// ListingService handles seller listings and what viewers may see of them
type ListingService struct {
	productRepo ProductRepository
	profileRepo ProfileRepository
	ndaRepo     NDARepository
	views       ViewCounter
	bids        OpenBidReleaser
	now         func() time.Time
}

// ListingServiceConfig holds configuration for the listing service
type ListingServiceConfig struct {
	ProductRepo ProductRepository
	ProfileRepo ProfileRepository
	NDARepo     NDARepository
	Views       ViewCounter
}

// NewListingService creates a new listing service
func NewListingService(cfg ListingServiceConfig) *ListingService {
	return &ListingService{
		productRepo: cfg.ProductRepo,
		profileRepo: cfg.ProfileRepo,
		ndaRepo:     cfg.NDARepo,
		views:       cfg.Views,
		now:         time.Now,
	}
}

// SetBidReleaser wires the bid service, which itself depends on listings
func (s *ListingService) SetBidReleaser(b OpenBidReleaser) {
	s.bids = b
}

// CreateListing creates a draft listing owned by sellerID
func (s *ListingService) CreateListing(ctx context.Context, sellerID string, req *model.CreateListingRequest) (*model.Product, error) {
	now := s.now()
	p := &model.Product{
		SellerID:            sellerID,
		Title:               req.Title,
		Tagline:             req.Tagline,
		Description:         req.Description,
		Category:            req.Category,
		BusinessModel:       req.BusinessModel,
		TechStack:           req.TechStack,
		AIModels:            req.AIModels,
		AgeMonths:           req.AgeMonths,
		MonthlyRevenue:      req.MonthlyRevenue,
		AskingPrice:         req.AskingPrice,
		MonthlyProfit:       &req.MonthlyProfit,
		MonthlyVisitors:     &req.MonthlyVisitors,
		Customers:           &req.Customers,
		RequiresNDA:         req.RequiresNDA,
		WebsiteURL:          req.WebsiteURL,
		ConfidentialDetails: req.ConfidentialDetails,
		FinancialsURL:       req.FinancialsURL,
		ListingType:         model.ListingType(req.ListingType),
		Status:              model.ListingStatusDraft,
	}

	if p.ListingType == model.ListingTypeAuction {
		if req.Auction == nil {
			return nil, ErrInvalidListingType
		}
		settings, err := req.Auction.ToSettings(now)
		if err != nil {
			return nil, err
		}
		p.Auction = settings
		// Price filters and sorting read asking_price
		p.AskingPrice = settings.StartPrice
	}

	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateListing edits a listing the caller owns. Material edits to an
// approved listing send it back to review.
func (s *ListingService) UpdateListing(ctx context.Context, userID, id string, req *model.UpdateListingRequest) (*model.Product, error) {
	p, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsEditable() {
		return nil, ErrListingNotEditable
	}

	if req.Auction != nil {
		if p.ListingType != model.ListingTypeAuction {
			return nil, ErrInvalidListingType
		}
		// A running auction cannot be re-priced under its bidders
		if p.Status == model.ListingStatusApproved && AuctionPhaseAt(p.Auction, s.now()) == model.AuctionLive {
			return nil, ErrListingNotEditable
		}
		settings, err := req.Auction.ToSettings(s.now())
		if err != nil {
			return nil, err
		}
		p.Auction = settings
		p.AskingPrice = settings.StartPrice
	}
	if req.AskingPrice != nil && p.ListingType == model.ListingTypeAuction {
		return nil, ErrInvalidListingType
	}

	applyListingUpdate(p, req)

	if p.Status == model.ListingStatusApproved && req.IsMaterial() {
		now := s.now()
		p.Status = model.ListingStatusPendingReview
		p.SubmittedOn = &now
	}

	if err := s.productRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func applyListingUpdate(p *model.Product, req *model.UpdateListingRequest) {
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Tagline != nil {
		p.Tagline = req.Tagline
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.BusinessModel != nil {
		p.BusinessModel = *req.BusinessModel
	}
	if req.TechStack != nil {
		p.TechStack = req.TechStack
	}
	if req.AIModels != nil {
		p.AIModels = req.AIModels
	}
	if req.AgeMonths != nil {
		p.AgeMonths = *req.AgeMonths
	}
	if req.MonthlyRevenue != nil {
		p.MonthlyRevenue = *req.MonthlyRevenue
	}
	if req.MonthlyProfit != nil {
		p.MonthlyProfit = req.MonthlyProfit
	}
	if req.MonthlyVisitors != nil {
		p.MonthlyVisitors = req.MonthlyVisitors
	}
	if req.Customers != nil {
		p.Customers = req.Customers
	}
	if req.AskingPrice != nil {
		p.AskingPrice = *req.AskingPrice
	}
	if req.RequiresNDA != nil {
		p.RequiresNDA = *req.RequiresNDA
	}
	if req.WebsiteURL != nil {
		p.WebsiteURL = req.WebsiteURL
	}
	if req.ConfidentialDetails != nil {
		p.ConfidentialDetails = req.ConfidentialDetails
	}
	if req.FinancialsURL != nil {
		p.FinancialsURL = req.FinancialsURL
	}
}

// SubmitForReview sends a draft or rejected listing to moderation
func (s *ListingService) SubmitForReview(ctx context.Context, userID, id string) (*model.Product, error) {
	p, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.submit(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ListingService) submit(ctx context.Context, p *model.Product) error {
	if p.IsAuction() && !p.Auction.EndsAt.After(s.now()) {
		return ErrListingNotSubmittable
	}
	changed, err := s.productRepo.UpdateStatus(ctx, p.ID,
		[]model.ListingStatus{model.ListingStatusDraft, model.ListingStatusRejected},
		model.ListingStatusPendingReview)
	if err != nil {
		return err
	}
	if !changed {
		return ErrListingNotSubmittable
	}
	now := s.now()
	p.Status = model.ListingStatusPendingReview
	p.SubmittedOn = &now
	return nil
}

// WithdrawListing takes a listing off the market and releases open bids
func (s *ListingService) WithdrawListing(ctx context.Context, userID, id string) (*model.Product, error) {
	p, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := []model.ListingStatus{
		model.ListingStatusDraft,
		model.ListingStatusPendingReview,
		model.ListingStatusRejected,
		model.ListingStatusApproved,
	}
	changed, err := s.productRepo.UpdateStatus(ctx, id, from, model.ListingStatusWithdrawn)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrCannotWithdraw
	}
	p.Status = model.ListingStatusWithdrawn

	if s.bids != nil {
		if _, err := s.bids.ReleaseOpenBids(ctx, id, model.BidStatusRejected, "listing withdrawn"); err != nil {
			slog.Warn("failed to release bids on withdrawn listing", "product_id", id, "error", err)
		}
	}
	return p, nil
}

// GetListing returns a listing redacted for the viewer and counts the view.
// Listings that are not public are only visible to their owner and admins.
func (s *ListingService) GetListing(ctx context.Context, viewer Viewer, id string) (*model.ListingView, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}
	isOwner := viewer.UserID != "" && viewer.UserID == p.SellerID
	if !p.Status.IsPubliclyVisible() && !isOwner && !viewer.IsAdmin {
		return nil, ErrListingNotFound
	}

	viewer, err = s.resolveViewer(ctx, viewer, p)
	if err != nil {
		return nil, err
	}

	if !isOwner && s.views != nil {
		if err := s.views.Incr(ctx, p.ID); err != nil {
			slog.Warn("failed to count listing view", "product_id", p.ID, "error", err)
		}
	}
	return BuildListingView(p, viewer, s.now()), nil
}

// resolveViewer fills in the subscription and NDA state for p
func (s *ListingService) resolveViewer(ctx context.Context, viewer Viewer, p *model.Product) (Viewer, error) {
	if viewer.UserID == "" || viewer.IsAdmin || viewer.UserID == p.SellerID {
		return viewer, nil
	}
	profile, err := s.profileRepo.GetByUserID(ctx, viewer.UserID)
	if err != nil {
		return viewer, err
	}
	viewer.Subscribed = profile.HasActiveSubscription(s.now())
	if p.RequiresNDA {
		signed, err := s.ndaRepo.Has(ctx, p.ID, viewer.UserID)
		if err != nil {
			return viewer, err
		}
		viewer.NDASigned = signed
	}
	return viewer, nil
}

// ListMyListings returns every listing the caller owns
func (s *ListingService) ListMyListings(ctx context.Context, userID string) ([]*model.Product, error) {
	return s.productRepo.ListBySeller(ctx, userID)
}

// BrowseListings returns one page of public listings
func (s *ListingService) BrowseListings(ctx context.Context, viewer Viewer, f *model.ListingFilter) (*model.ListingPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = model.DefaultBrowseLimit
	}
	now := s.now()

	products, err := s.productRepo.Browse(ctx, f, limit+1, now)
	if err != nil {
		return nil, err
	}

	if viewer.UserID != "" && !viewer.IsAdmin {
		profile, err := s.profileRepo.GetByUserID(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		viewer.Subscribed = profile.HasActiveSubscription(now)
	}

	page := &model.ListingPage{Listings: make([]*model.ListingView, 0, min(len(products), limit))}
	if len(products) > limit {
		products = products[:limit]
		page.NextCursor = strconv.Itoa(f.Offset + limit)
	}
	for _, p := range products {
		page.Listings = append(page.Listings, BuildListingView(p, viewer, now))
	}
	return page, nil
}

// SignNDA records the viewer accepting the listing NDA. Signing twice
// returns the original signature.
func (s *ListingService) SignNDA(ctx context.Context, userID, productID string, req *model.SignNDARequest) (*model.NDASignature, error) {
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Status.IsPubliclyVisible() {
		return nil, ErrListingNotFound
	}
	if !p.RequiresNDA || p.SellerID == userID {
		return nil, ErrNDANotRequired
	}
	return s.ndaRepo.Sign(ctx, &model.NDASignature{
		ProductID: productID,
		UserID:    userID,
		FullName:  req.FullName,
	})
}

// FlushViews moves buffered view counts into the listings
func (s *ListingService) FlushViews(ctx context.Context) (int, error) {
	if s.views == nil {
		return 0, nil
	}
	counts, err := s.views.Drain(ctx)
	if err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}
	if err := s.productRepo.AddViews(ctx, counts); err != nil {
		return 0, err
	}
	return len(counts), nil
}

func (s *ListingService) getOwned(ctx context.Context, userID, id string) (*model.Product, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}
	if p.SellerID != userID {
		return nil, ErrNotListingOwner
	}
	return p, nil
}
