package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/forgo/exitlane/api/internal/email"
	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/model"
)

// Mailer sends a templated email
type Mailer interface {
	Send(ctx context.Context, to string, name email.Template, data email.Data) error
}

// Notifier sends the transactional emails. Delivery failures are logged and
// swallowed so they never fail the operation that triggered them.
type Notifier struct {
	mailer      Mailer
	userRepo    UserRepository
	profileRepo ProfileRepository
	baseURL     string
	async       bool
	timeout     time.Duration
	wg          sync.WaitGroup
}

// NotifierConfig holds configuration for the notifier
type NotifierConfig struct {
	Mailer      Mailer
	UserRepo    UserRepository
	ProfileRepo ProfileRepository
	BaseURL     string // public frontend URL for links
	Async       bool   // send from a goroutine
	Timeout     time.Duration
}

// NewNotifier creates a new notifier
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Notifier{
		mailer:      cfg.Mailer,
		userRepo:    cfg.UserRepo,
		profileRepo: cfg.ProfileRepo,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		async:       cfg.Async,
		timeout:     cfg.Timeout,
	}
}

// Wait blocks until in-flight async sends finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Welcome is send-welcome-email
func (n *Notifier) Welcome(ctx context.Context, user *model.User, name string) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.send(ctx, user.Email, email.TemplateWelcome, email.Data{
			Name:      firstNonEmpty(name, "there"),
			ActionURL: n.link("/marketplace"),
		})
	})
}

// ListingReviewed tells the seller about a moderation decision
func (n *Notifier) ListingReviewed(ctx context.Context, product *model.Product) {
	n.dispatch(ctx, func(ctx context.Context) {
		tmpl := email.TemplateListingApproved
		data := email.Data{ListingTitle: product.Title, ActionURL: n.link("/listings/" + product.ID)}
		if product.Status == model.ListingStatusRejected {
			tmpl = email.TemplateListingRejected
			data.Feedback = stringValue(product.AdminFeedback)
			data.ActionURL = n.link("/listings/" + product.ID + "/edit")
		}
		n.sendToUser(ctx, product.SellerID, tmpl, data)
	})
}

// OfferReceived tells the seller a funded offer arrived
func (n *Notifier) OfferReceived(ctx context.Context, product *model.Product, bid *model.Bid) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.sendToUser(ctx, product.SellerID, email.TemplateOfferReceived, email.Data{
			ListingTitle: product.Title,
			Amount:       bid.Amount,
			ActionURL:    n.link("/dashboard/listings/" + product.ID + "/offers"),
		})
	})
}

// OfferAccepted tells the buyer the seller accepted
func (n *Notifier) OfferAccepted(ctx context.Context, product *model.Product, bid *model.Bid) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.sendToUser(ctx, bid.BuyerID, email.TemplateOfferAccepted, email.Data{
			ListingTitle: product.Title,
			Amount:       bid.Amount,
			ActionURL:    n.link("/dashboard/deals"),
		})
	})
}

// AuctionResult is send-auction-result-email. With a winner the buyer gets
// the win email and the seller the sold email; without one the seller gets
// the unsold email.
func (n *Notifier) AuctionResult(ctx context.Context, product *model.Product, winner *model.Bid) {
	n.dispatch(ctx, func(ctx context.Context) {
		if winner == nil {
			n.sendToUser(ctx, product.SellerID, email.TemplateAuctionUnsold, email.Data{
				ListingTitle: product.Title,
				ActionURL:    n.link("/listings/" + product.ID + "/edit"),
			})
			return
		}
		n.sendToUser(ctx, winner.BuyerID, email.TemplateAuctionWon, email.Data{
			ListingTitle: product.Title,
			Amount:       winner.Amount,
			ActionURL:    n.link("/dashboard/deals"),
		})
		n.sendToUser(ctx, product.SellerID, email.TemplateAuctionSold, email.Data{
			ListingTitle: product.Title,
			Amount:       winner.Amount,
			ActionURL:    n.link("/dashboard/deals"),
		})
	})
}

func (n *Notifier) dispatch(ctx context.Context, fn func(ctx context.Context)) {
	if n == nil || n.mailer == nil {
		return
	}
	if !n.async {
		fn(ctx)
		return
	}
	// Detach from the request so the send outlives the response
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		fn(sendCtx)
	}()
}

func (n *Notifier) sendToUser(ctx context.Context, userID string, tmpl email.Template, data email.Data) {
	user, err := n.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("email recipient lookup failed", "template", string(tmpl), "user_id", userID, "error", err)
		return
	}
	if data.Name == "" && n.profileRepo != nil {
		if profile, err := n.profileRepo.GetByUserID(ctx, userID); err == nil && profile != nil {
			data.Name = stringValue(profile.FullName)
		}
	}
	if data.Name == "" {
		data.Name = "there"
	}
	n.send(ctx, user.Email, tmpl, data)
}

func (n *Notifier) send(ctx context.Context, to string, tmpl email.Template, data email.Data) {
	err := n.mailer.Send(ctx, to, tmpl, data)
	metrics.RecordEmail(string(tmpl), err)
	if err != nil {
		slog.Warn("email delivery failed", "template", string(tmpl), "error", err)
	}
}

func (n *Notifier) link(path string) string {
	return n.baseURL + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
