package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/exitlane/api/internal/catalog"
	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
)

// BidRepository defines the interface for bid storage
type BidRepository interface {
	Create(ctx context.Context, bid *model.Bid) error
	GetByID(ctx context.Context, id string) (*model.Bid, error)
	ListByProduct(ctx context.Context, productID string) ([]*model.Bid, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*model.Bid, error)
	ListOpenByProduct(ctx context.Context, productID string) ([]*model.Bid, error)
	FindOpenByBuyer(ctx context.Context, productID, buyerID string) (*model.Bid, error)
	UpdateStatus(ctx context.Context, id string, from []model.BidStatus, to model.BidStatus) (bool, error)
	SetEscrow(ctx context.Context, bidID, escrowID string) error
}

// BidService handles offers and auction bids. Every bid is backed by a
// manual-capture hold on the buyer's card.
type BidService struct {
	bidRepo     BidRepository
	productRepo ProductRepository
	escrowRepo  EscrowRepository
	escrow      *EscrowService
	gateway     payments.Gateway
	catalog     *catalog.Catalog
	now         func() time.Time
}

// BidServiceConfig holds configuration for the bid service
type BidServiceConfig struct {
	BidRepo     BidRepository
	ProductRepo ProductRepository
	EscrowRepo  EscrowRepository
	Escrow      *EscrowService
	Gateway     payments.Gateway
	Catalog     *catalog.Catalog
}

// NewBidService creates a new bid service
func NewBidService(cfg BidServiceConfig) *BidService {
	gateway := cfg.Gateway
	if gateway == nil {
		gateway = payments.Disabled{}
	}
	return &BidService{
		bidRepo:     cfg.BidRepo,
		productRepo: cfg.ProductRepo,
		escrowRepo:  cfg.EscrowRepo,
		escrow:      cfg.Escrow,
		gateway:     gateway,
		catalog:     cfg.Catalog,
		now:         time.Now,
	}
}

// PlaceBid places an offer on a buy-now listing or a bid on a live auction.
// It opens the card hold for amount plus the buyer fee and returns the
// client secret the buyer confirms the card with.
func (s *BidService) PlaceBid(ctx context.Context, buyerID, productID string, req *model.PlaceBidRequest) (*model.PlaceBidResponse, error) {
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Status.IsPubliclyVisible() {
		return nil, ErrListingNotFound
	}
	if p.SellerID == buyerID {
		return nil, ErrCannotBidOwn
	}
	if p.Status != model.ListingStatusApproved {
		return nil, ErrListingNotAvailable
	}

	bid := &model.Bid{
		ProductID: p.ID,
		BuyerID:   buyerID,
		SellerID:  p.SellerID,
		Amount:    req.Amount,
		Message:   req.Message,
		Kind:      p.ListingType,
		Status:    model.BidStatusPending,
	}
	if p.IsAuction() {
		now := s.now()
		if AuctionPhaseAt(p.Auction, now) != model.AuctionLive {
			return nil, ErrAuctionNotLive
		}
		if req.Amount < CurrentPrice(p.Auction, now) {
			return nil, ErrBidBelowPrice
		}
	} else {
		bid.BelowAsking = req.Amount < p.AskingPrice
	}

	open, err := s.bidRepo.FindOpenByBuyer(ctx, p.ID, buyerID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrBidAlreadyOpen
	}

	fee := s.catalog.EscrowFee.BuyerFee(req.Amount)
	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentParams{
		Amount:      req.Amount + fee,
		Currency:    s.catalog.Currency,
		Description: fmt.Sprintf("Escrow hold for %s", p.Title),
		Metadata: map[string]string{
			"product_id": p.ID,
			"buyer_id":   buyerID,
			"kind":       string(p.ListingType),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		metrics.RecordPaymentFailure("create_intent")
		return nil, err
	}

	if err := s.bidRepo.Create(ctx, bid); err != nil {
		s.abandonIntent(ctx, intent.ID)
		return nil, err
	}

	e := &model.EscrowTransaction{
		ProductID:       p.ID,
		BidID:           bid.ID,
		BuyerID:         buyerID,
		SellerID:        p.SellerID,
		Amount:          req.Amount,
		BuyerFee:        fee,
		TotalCharged:    req.Amount + fee,
		Currency:        s.catalog.Currency,
		PaymentIntentID: intent.ID,
		Status:          model.EscrowPendingPayment,
	}
	if err := s.escrowRepo.Create(ctx, e); err != nil {
		s.abandonIntent(ctx, intent.ID)
		_, _ = s.bidRepo.UpdateStatus(ctx, bid.ID, []model.BidStatus{model.BidStatusPending}, model.BidStatusExpired)
		return nil, err
	}
	if err := s.bidRepo.SetEscrow(ctx, bid.ID, e.ID); err != nil {
		return nil, err
	}
	bid.EscrowID = &e.ID

	metrics.RecordBid(string(bid.Kind))
	metrics.RecordEscrowTransition(string(model.EscrowPendingPayment))

	return &model.PlaceBidResponse{Bid: bid, Escrow: e, ClientSecret: intent.ClientSecret}, nil
}

func (s *BidService) abandonIntent(ctx context.Context, intentID string) {
	if _, err := s.gateway.CancelIntent(ctx, intentID); err != nil {
		slog.Warn("failed to cancel orphaned payment intent", "intent_id", intentID, "error", err)
	}
}

// AcceptBid is the seller taking a funded buy-now offer. Auction bids are
// accepted automatically when funded.
func (s *BidService) AcceptBid(ctx context.Context, sellerID, bidID string) (*model.Bid, error) {
	bid, p, err := s.getForSeller(ctx, sellerID, bidID)
	if err != nil {
		return nil, err
	}
	if p.IsAuction() {
		return nil, ErrAuctionBidsAutoAccept
	}
	if !bid.Status.IsOpen() {
		return nil, ErrBidNotOpen
	}
	if p.Status != model.ListingStatusApproved {
		return nil, ErrListingNotAvailable
	}
	e, err := s.escrowRepo.GetByBid(ctx, bid.ID)
	if err != nil {
		return nil, err
	}
	if e == nil || e.Status != model.EscrowFundsHeld {
		return nil, ErrBidNotFunded
	}

	if err := s.escrow.AcceptDeal(ctx, p, bid, e); err != nil {
		return nil, err
	}
	return s.reloadBid(ctx, bid)
}

// RejectBid is the seller declining an open offer. The hold is released.
func (s *BidService) RejectBid(ctx context.Context, sellerID, bidID string) (*model.Bid, error) {
	bid, _, err := s.getForSeller(ctx, sellerID, bidID)
	if err != nil {
		return nil, err
	}
	if !bid.Status.IsOpen() {
		return nil, ErrBidNotOpen
	}
	if err := s.close(ctx, bid, model.BidStatusRejected, "offer declined"); err != nil {
		return nil, err
	}
	publish(s.escrow.events, bid.BuyerID, EventBidRejected, bid)
	return s.reloadBid(ctx, bid)
}

// WithdrawBid is the buyer pulling an open bid. The hold is released.
func (s *BidService) WithdrawBid(ctx context.Context, buyerID, bidID string) (*model.Bid, error) {
	bid, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, ErrBidNotFound
	}
	if bid.BuyerID != buyerID {
		return nil, ErrNotBidder
	}
	if !bid.Status.IsOpen() {
		return nil, ErrBidNotOpen
	}
	if err := s.close(ctx, bid, model.BidStatusWithdrawn, "offer withdrawn"); err != nil {
		return nil, err
	}
	return s.reloadBid(ctx, bid)
}

// ReleaseOpenBids closes every open bid on a listing, used when the listing
// leaves the market. It returns how many bids were closed.
func (s *BidService) ReleaseOpenBids(ctx context.Context, productID string, status model.BidStatus, reason string) (int, error) {
	open, err := s.bidRepo.ListOpenByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, bid := range open {
		if err := s.close(ctx, bid, status, reason); err != nil {
			slog.Warn("failed to release bid", "bid_id", bid.ID, "error", err)
			continue
		}
		publish(s.escrow.events, bid.BuyerID, EventBidRejected, bid)
		closed++
	}
	return closed, nil
}

// close releases the bid's hold, or just closes the bid when it never got one
func (s *BidService) close(ctx context.Context, bid *model.Bid, status model.BidStatus, reason string) error {
	e, err := s.escrowRepo.GetByBid(ctx, bid.ID)
	if err != nil {
		return err
	}
	if e == nil || !e.Status.IsCancellable() {
		changed, err := s.bidRepo.UpdateStatus(ctx, bid.ID, []model.BidStatus{model.BidStatusPending}, status)
		if err != nil {
			return err
		}
		if !changed {
			return ErrBidNotOpen
		}
		return nil
	}
	return s.escrow.Release(ctx, e, bid, status, reason)
}

// ListBidsForListing returns every bid on a listing to its owner or an admin
func (s *BidService) ListBidsForListing(ctx context.Context, userID string, isAdmin bool, productID string) ([]*model.Bid, error) {
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}
	if !isAdmin && p.SellerID != userID {
		return nil, ErrNotListingOwner
	}
	return s.bidRepo.ListByProduct(ctx, productID)
}

// ListMyBids returns the caller's bids, newest first
func (s *BidService) ListMyBids(ctx context.Context, buyerID string) ([]*model.Bid, error) {
	return s.bidRepo.ListByBuyer(ctx, buyerID)
}

func (s *BidService) getForSeller(ctx context.Context, sellerID, bidID string) (*model.Bid, *model.Product, error) {
	bid, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	if bid == nil {
		return nil, nil, ErrBidNotFound
	}
	p, err := s.productRepo.GetByID(ctx, bid.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrListingNotFound
	}
	if p.SellerID != sellerID {
		return nil, nil, ErrNotListingOwner
	}
	return bid, p, nil
}

func (s *BidService) reloadBid(ctx context.Context, bid *model.Bid) (*model.Bid, error) {
	fresh, err := s.bidRepo.GetByID(ctx, bid.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return bid, nil
	}
	return fresh, nil
}
