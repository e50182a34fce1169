package jobs

import (
	"context"
	"errors"

	"github.com/forgo/exitlane/api/internal/config"
)

// Job names
const (
	AuctionFinalizeJob   = "auction_finalizer"
	SubscriptionSweepJob = "subscription_expiry"
	ViewFlushJob         = "view_flush"
	TokenCleanupJob      = "token_cleanup"
)

// AuctionFinalizer closes auctions whose end time has passed
type AuctionFinalizer interface {
	FinalizeAuctions(ctx context.Context) (int, error)
}

// SubscriptionExpirer marks lapsed buyer subscriptions as expired
type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context) (int, error)
}

// ViewFlusher moves buffered listing view counts into storage
type ViewFlusher interface {
	FlushViews(ctx context.Context) (int, error)
}

// TokenCleaner removes expired refresh tokens
type TokenCleaner interface {
	CleanupExpired(ctx context.Context) error
}

// Services are the job targets. All of them are required.
type Services struct {
	Auctions      AuctionFinalizer
	Subscriptions SubscriptionExpirer
	Views         ViewFlusher
	Tokens        TokenCleaner
}

// Register adds the marketplace jobs to s using the schedules in cfg
func Register(s *Scheduler, cfg config.JobsConfig, svc Services) error {
	if svc.Auctions == nil || svc.Subscriptions == nil || svc.Views == nil || svc.Tokens == nil {
		return errors.New("jobs: all job services are required")
	}

	tokenCleanup := func(ctx context.Context) (int, error) {
		return 0, svc.Tokens.CleanupExpired(ctx)
	}

	for _, j := range []struct {
		name string
		spec string
		task Task
	}{
		{AuctionFinalizeJob, cfg.AuctionFinalizeSpec, svc.Auctions.FinalizeAuctions},
		{SubscriptionSweepJob, cfg.SubscriptionSweepSpec, svc.Subscriptions.ExpireSubscriptions},
		{ViewFlushJob, cfg.ViewFlushSpec, svc.Views.FlushViews},
		{TokenCleanupJob, cfg.TokenCleanupSpec, tokenCleanup},
	} {
		if err := s.Add(j.name, j.spec, j.task); err != nil {
			return err
		}
	}
	return nil
}
