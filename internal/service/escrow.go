package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
)

// EscrowRepository defines the interface for escrow storage
type EscrowRepository interface {
	Create(ctx context.Context, e *model.EscrowTransaction) error
	GetByID(ctx context.Context, id string) (*model.EscrowTransaction, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*model.EscrowTransaction, error)
	GetByBid(ctx context.Context, bidID string) (*model.EscrowTransaction, error)
	ListByUser(ctx context.Context, userID string) ([]*model.EscrowTransaction, error)
	UpdateStatus(ctx context.Context, id string, from []model.EscrowStatus, to model.EscrowStatus, reason *string) (*model.EscrowTransaction, error)
	AcceptDeal(ctx context.Context, escrowID, bidID, productID string, rejectBidIDs []string) error
	CompleteDeal(ctx context.Context, escrowID, bidID, productID string) error
	CancelDeal(ctx context.Context, escrowID, bidID, productID string, bidStatus model.BidStatus, reason *string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CompletedVolume(ctx context.Context) (int64, error)
}

// unfundedStatuses are escrows still waiting on the buyer's card
var unfundedStatuses = []model.EscrowStatus{model.EscrowPendingPayment, model.EscrowRequiresAction}

// EscrowService runs the escrow-backed deal from hold to capture
type EscrowService struct {
	escrowRepo  EscrowRepository
	bidRepo     BidRepository
	productRepo ProductRepository
	gateway     payments.Gateway
	events      Publisher
	notifier    *Notifier
	now         func() time.Time
}

// EscrowServiceConfig holds configuration for the escrow service
type EscrowServiceConfig struct {
	EscrowRepo  EscrowRepository
	BidRepo     BidRepository
	ProductRepo ProductRepository
	Gateway     payments.Gateway
	Events      Publisher
	Notifier    *Notifier
}

// NewEscrowService creates a new escrow service
func NewEscrowService(cfg EscrowServiceConfig) *EscrowService {
	gateway := cfg.Gateway
	if gateway == nil {
		gateway = payments.Disabled{}
	}
	return &EscrowService{
		escrowRepo:  cfg.EscrowRepo,
		bidRepo:     cfg.BidRepo,
		productRepo: cfg.ProductRepo,
		gateway:     gateway,
		events:      cfg.Events,
		notifier:    cfg.Notifier,
		now:         time.Now,
	}
}

// GetEscrow returns an escrow and its pipeline to a party or an admin
func (s *EscrowService) GetEscrow(ctx context.Context, userID string, isAdmin bool, id string) (*model.EscrowDetail, error) {
	e, err := s.getForParty(ctx, userID, isAdmin, id)
	if err != nil {
		return nil, err
	}
	return &model.EscrowDetail{Escrow: e, Pipeline: CreatePipelineStages(e.Status)}, nil
}

// ListMyEscrows returns the caller's deals as buyer or seller
func (s *EscrowService) ListMyEscrows(ctx context.Context, userID string) ([]*model.EscrowDetail, error) {
	escrows, err := s.escrowRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.EscrowDetail, 0, len(escrows))
	for _, e := range escrows {
		out = append(out, &model.EscrowDetail{Escrow: e, Pipeline: CreatePipelineStages(e.Status)})
	}
	return out, nil
}

// VerifyPayment asks the processor for the hold's state and applies it.
// This is how the client reports back after confirming the card.
func (s *EscrowService) VerifyPayment(ctx context.Context, userID string, isAdmin bool, id string) (*model.PaymentVerification, error) {
	e, err := s.getForParty(ctx, userID, isAdmin, id)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.GetIntent(ctx, e.PaymentIntentID)
	if err != nil {
		metrics.RecordPaymentFailure("verify")
		return nil, err
	}
	e, err = s.ApplyIntent(ctx, e, intent)
	if err != nil {
		return nil, err
	}

	out := &model.PaymentVerification{Escrow: e, ProcessorState: string(intent.Status)}
	if intent.Status == payments.IntentRequiresAction {
		out.RequiresAction = true
		out.ClientSecret = intent.ClientSecret
	}
	return out, nil
}

// ApplyIntent moves the escrow to match the processor's intent state.
// A funded auction bid wins the auction on the spot.
func (s *EscrowService) ApplyIntent(ctx context.Context, e *model.EscrowTransaction, intent *payments.Intent) (*model.EscrowTransaction, error) {
	switch intent.Status {
	case payments.IntentRequiresCapture, payments.IntentSucceeded:
		updated, err := s.transition(ctx, e, unfundedStatuses, model.EscrowFundsHeld, nil)
		if err != nil || updated == nil {
			return s.reload(ctx, e, err)
		}
		if err := s.onFunded(ctx, updated); err != nil {
			return nil, err
		}
		return s.reload(ctx, updated, nil)

	case payments.IntentRequiresAction:
		updated, err := s.transition(ctx, e, []model.EscrowStatus{model.EscrowPendingPayment}, model.EscrowRequiresAction, nil)
		if err != nil || updated == nil {
			return s.reload(ctx, e, err)
		}
		return updated, nil

	case payments.IntentRequiresPaymentMethod:
		// A fresh intent also waits for a payment method; only a failed attempt counts
		if intent.LastError == "" {
			return e, nil
		}
		reason := payments.FriendlyText(intent.LastError)
		updated, err := s.transition(ctx, e, unfundedStatuses, model.EscrowPaymentFailed, &reason)
		if err != nil || updated == nil {
			return s.reload(ctx, e, err)
		}
		if _, err := s.bidRepo.UpdateStatus(ctx, e.BidID, []model.BidStatus{model.BidStatusPending}, model.BidStatusExpired); err != nil {
			return nil, err
		}
		return updated, nil

	case payments.IntentCanceled:
		if !e.Status.IsCancellable() {
			return e, nil
		}
		reason := "payment cancelled"
		if err := s.escrowRepo.CancelDeal(ctx, e.ID, e.BidID, e.ProductID, model.BidStatusExpired, &reason); err != nil && !errors.Is(err, ErrDealStateChanged) {
			return nil, err
		}
		s.recordTransition(e, model.EscrowCancelled)
		return s.reload(ctx, e, nil)
	}
	return e, nil
}

// onFunded runs once when a hold becomes funds_held
func (s *EscrowService) onFunded(ctx context.Context, e *model.EscrowTransaction) error {
	bid, err := s.bidRepo.GetByID(ctx, e.BidID)
	if err != nil {
		return err
	}
	product, err := s.productRepo.GetByID(ctx, e.ProductID)
	if err != nil {
		return err
	}
	if bid == nil || product == nil {
		return nil
	}

	publish(s.events, e.SellerID, EventBidNew, bid)

	if bid.Kind != model.ListingTypeAuction {
		s.notifier.OfferReceived(ctx, product, bid)
		return nil
	}

	// First funded bid at the price wins the Dutch auction
	if product.Status != model.ListingStatusApproved {
		return s.Release(ctx, e, bid, model.BidStatusRejected, "auction already closed")
	}
	err = s.AcceptDeal(ctx, product, bid, e)
	if errors.Is(err, ErrDealStateChanged) {
		return s.Release(ctx, e, bid, model.BidStatusRejected, "auction already closed")
	}
	return err
}

// AcceptDeal commits the listing to bid: the funded hold moves to asset
// transfer, the listing goes under offer and every other open bid is
// rejected with its hold released.
func (s *EscrowService) AcceptDeal(ctx context.Context, product *model.Product, bid *model.Bid, e *model.EscrowTransaction) error {
	open, err := s.bidRepo.ListOpenByProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	var others []*model.Bid
	var otherIDs []string
	for _, b := range open {
		if b.ID != bid.ID {
			others = append(others, b)
			otherIDs = append(otherIDs, b.ID)
		}
	}

	if err := s.escrowRepo.AcceptDeal(ctx, e.ID, bid.ID, product.ID, otherIDs); err != nil {
		return err
	}
	s.recordTransition(e, model.EscrowTransferInProgress)
	publish(s.events, bid.BuyerID, EventBidAccepted, bid)

	for _, other := range others {
		s.releaseRejected(ctx, other, "another offer was accepted")
	}

	if bid.Kind == model.ListingTypeBuyNow {
		s.notifier.OfferAccepted(ctx, product, bid)
	}
	return nil
}

// releaseRejected cancels the hold of a bid the deal transaction already
// rejected. Failures are logged; the hold lapses at the processor anyway.
func (s *EscrowService) releaseRejected(ctx context.Context, bid *model.Bid, reason string) {
	publish(s.events, bid.BuyerID, EventBidRejected, bid)

	e, err := s.escrowRepo.GetByBid(ctx, bid.ID)
	if err != nil || e == nil || !e.Status.IsCancellable() {
		return
	}
	if err := s.cancelIntent(ctx, e.PaymentIntentID); err != nil {
		slog.Warn("failed to release losing bid hold", "escrow_id", e.ID, "error", err)
		return
	}
	if _, err := s.transition(ctx, e, unfundedOrHeld, model.EscrowCancelled, &reason); err != nil {
		slog.Warn("failed to cancel losing bid escrow", "escrow_id", e.ID, "error", err)
	}
}

var unfundedOrHeld = []model.EscrowStatus{model.EscrowPendingPayment, model.EscrowRequiresAction, model.EscrowFundsHeld}

// Release cancels the processor hold and closes the deal. If the bid had
// won the listing the listing goes back on the market.
func (s *EscrowService) Release(ctx context.Context, e *model.EscrowTransaction, bid *model.Bid, bidStatus model.BidStatus, reason string) error {
	if err := s.cancelIntent(ctx, e.PaymentIntentID); err != nil {
		return err
	}
	if err := s.escrowRepo.CancelDeal(ctx, e.ID, bid.ID, e.ProductID, bidStatus, &reason); err != nil {
		return err
	}
	s.recordTransition(e, model.EscrowCancelled)
	return nil
}

// cancelIntent releases a hold. An intent the processor already cancelled
// counts as released.
func (s *EscrowService) cancelIntent(ctx context.Context, intentID string) error {
	_, err := s.gateway.CancelIntent(ctx, intentID)
	if err == nil {
		return nil
	}
	if intent, getErr := s.gateway.GetIntent(ctx, intentID); getErr == nil && intent.Status == payments.IntentCanceled {
		return nil
	}
	metrics.RecordPaymentFailure("cancel")
	return err
}

// MarkDelivered is the seller saying the assets were handed over
func (s *EscrowService) MarkDelivered(ctx context.Context, userID, id string) (*model.EscrowDetail, error) {
	e, err := s.getForParty(ctx, userID, false, id)
	if err != nil {
		return nil, err
	}
	if e.SellerID != userID {
		return nil, ErrNotEscrowParty
	}
	updated, err := s.transition(ctx, e, []model.EscrowStatus{model.EscrowTransferInProgress}, model.EscrowAwaitingConfirmation, nil)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrEscrowState
	}
	return &model.EscrowDetail{Escrow: updated, Pipeline: CreatePipelineStages(updated.Status)}, nil
}

// ConfirmReceipt is the buyer confirming the transfer. The hold is captured
// and the deal completes.
func (s *EscrowService) ConfirmReceipt(ctx context.Context, userID, id string) (*model.EscrowDetail, error) {
	e, err := s.getForParty(ctx, userID, false, id)
	if err != nil {
		return nil, err
	}
	if e.BuyerID != userID {
		return nil, ErrNotEscrowParty
	}
	if e.Status != model.EscrowTransferInProgress && e.Status != model.EscrowAwaitingConfirmation {
		return nil, ErrEscrowState
	}

	if _, err := s.gateway.CaptureIntent(ctx, e.PaymentIntentID, "capture-"+e.ID); err != nil {
		metrics.RecordPaymentFailure("capture")
		return nil, err
	}
	if err := s.escrowRepo.CompleteDeal(ctx, e.ID, e.BidID, e.ProductID); err != nil {
		return nil, err
	}
	s.recordTransition(e, model.EscrowCompleted)

	e, err = s.reload(ctx, e, nil)
	if err != nil {
		return nil, err
	}
	return &model.EscrowDetail{Escrow: e, Pipeline: CreatePipelineStages(e.Status)}, nil
}

// CancelEscrow releases the hold before capture. Either party or an admin may cancel.
func (s *EscrowService) CancelEscrow(ctx context.Context, userID string, isAdmin bool, id, reason string) (*model.EscrowDetail, error) {
	e, err := s.getForParty(ctx, userID, isAdmin, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.IsCancellable() {
		return nil, ErrEscrowState
	}
	bid, err := s.bidRepo.GetByID(ctx, e.BidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, ErrBidNotFound
	}

	bidStatus := model.BidStatusRejected
	if userID == e.BuyerID {
		bidStatus = model.BidStatusWithdrawn
	}
	if reason == "" {
		reason = "cancelled"
	}
	if err := s.Release(ctx, e, bid, bidStatus, reason); err != nil {
		return nil, err
	}

	e, err = s.reload(ctx, e, nil)
	if err != nil {
		return nil, err
	}
	return &model.EscrowDetail{Escrow: e, Pipeline: CreatePipelineStages(e.Status)}, nil
}

// MarkDisputed flags a deal the payer disputed with their bank
func (s *EscrowService) MarkDisputed(ctx context.Context, intentID string) error {
	e, err := s.escrowRepo.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if e == nil || e.Status.IsTerminal() {
		return nil
	}
	from := []model.EscrowStatus{
		model.EscrowFundsHeld,
		model.EscrowTransferInProgress,
		model.EscrowAwaitingConfirmation,
	}
	_, err = s.transition(ctx, e, from, model.EscrowDisputed, nil)
	return err
}

// ApplyIntentByID applies a webhook intent to its escrow, if one exists
func (s *EscrowService) ApplyIntentByID(ctx context.Context, intent *payments.Intent) error {
	e, err := s.escrowRepo.GetByPaymentIntent(ctx, intent.ID)
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	_, err = s.ApplyIntent(ctx, e, intent)
	return err
}

func (s *EscrowService) transition(ctx context.Context, e *model.EscrowTransaction, from []model.EscrowStatus, to model.EscrowStatus, reason *string) (*model.EscrowTransaction, error) {
	updated, err := s.escrowRepo.UpdateStatus(ctx, e.ID, from, to, reason)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.recordTransition(updated, to)
	}
	return updated, nil
}

func (s *EscrowService) recordTransition(e *model.EscrowTransaction, to model.EscrowStatus) {
	metrics.RecordEscrowTransition(string(to))
	change := map[string]interface{}{"escrow_id": e.ID, "product_id": e.ProductID, "status": to}
	publish(s.events, e.BuyerID, EventEscrowUpdated, change)
	publish(s.events, e.SellerID, EventEscrowUpdated, change)
}

// reload fetches the current row after a transition that may have raced
func (s *EscrowService) reload(ctx context.Context, e *model.EscrowTransaction, err error) (*model.EscrowTransaction, error) {
	if err != nil {
		return nil, err
	}
	fresh, err := s.escrowRepo.GetByID(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return e, nil
	}
	return fresh, nil
}

func (s *EscrowService) getForParty(ctx context.Context, userID string, isAdmin bool, id string) (*model.EscrowTransaction, error) {
	e, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEscrowNotFound
	}
	if !isAdmin && !e.IsParty(userID) {
		return nil, ErrNotEscrowParty
	}
	return e, nil
}
