package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/model"
)

// AuctionFinalizer closes Dutch auctions and sends their result emails
type AuctionFinalizer struct {
	productRepo ProductRepository
	bidRepo     BidRepository
	bids        OpenBidReleaser
	notifier    *Notifier
	now         func() time.Time
}

// NewAuctionFinalizer creates a new auction finalizer
func NewAuctionFinalizer(productRepo ProductRepository, bidRepo BidRepository, bids OpenBidReleaser, notifier *Notifier) *AuctionFinalizer {
	return &AuctionFinalizer{
		productRepo: productRepo,
		bidRepo:     bidRepo,
		bids:        bids,
		notifier:    notifier,
		now:         time.Now,
	}
}

// FinalizeAuctions handles every auction that was won or ran out since the
// last pass. Won auctions email the winner and the seller; expired ones end
// the listing, release leftover holds and email the seller. It returns how
// many auctions were finalized.
func (f *AuctionFinalizer) FinalizeAuctions(ctx context.Context) (int, error) {
	auctions, err := f.productRepo.ListAuctionsToFinalize(ctx, f.now())
	if err != nil {
		return 0, err
	}

	done := 0
	for _, p := range auctions {
		if err := f.finalize(ctx, p); err != nil {
			slog.Warn("failed to finalize auction", "product_id", p.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (f *AuctionFinalizer) finalize(ctx context.Context, p *model.Product) error {
	if p.WinningBidID != nil {
		winner, err := f.bidRepo.GetByID(ctx, *p.WinningBidID)
		if err != nil {
			return err
		}
		if err := f.productRepo.MarkResultNotified(ctx, p.ID, false); err != nil {
			return err
		}
		metrics.RecordAuctionFinalized("sold")
		if winner != nil {
			f.notifier.AuctionResult(ctx, p, winner)
		}
		return nil
	}

	// Unfunded bids left at the end lose their holds
	if f.bids != nil {
		if _, err := f.bids.ReleaseOpenBids(ctx, p.ID, model.BidStatusExpired, "auction ended"); err != nil {
			return err
		}
	}
	if err := f.productRepo.MarkResultNotified(ctx, p.ID, true); err != nil {
		return err
	}
	metrics.RecordAuctionFinalized("unsold")
	f.notifier.AuctionResult(ctx, p, nil)
	return nil
}
