package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/exitlane/api/internal/email"
	"github.com/forgo/exitlane/api/internal/model"
)

func newTestNotifier(async bool) (*Notifier, *mockMailer, *mockUserRepo, *mockProfileRepo) {
	mailer := &mockMailer{}
	users := newMockUserRepo()
	profiles := newMockProfileRepo()
	n := NewNotifier(NotifierConfig{
		Mailer:      mailer,
		UserRepo:    users,
		ProfileRepo: profiles,
		BaseURL:     "https://exitlane.test/",
		Async:       async,
	})
	return n, mailer, users, profiles
}

func TestNotifier_Welcome(t *testing.T) {
	n, mailer, _, _ := newTestNotifier(false)
	user := &model.User{ID: "user:1", Email: "new@example.com"}

	n.Welcome(context.Background(), user, "")
	n.Welcome(context.Background(), user, "Sam")

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, email.TemplateWelcome, mailer.sent[0].Template)
	assert.Equal(t, "there", mailer.sent[0].Data.Name)
	assert.Equal(t, "Sam", mailer.sent[1].Data.Name)
	assert.Equal(t, "https://exitlane.test/marketplace", mailer.sent[1].Data.ActionURL)
}

func TestNotifier_UsesProfileName(t *testing.T) {
	n, mailer, users, profiles := newTestNotifier(false)
	users.add("user:seller", "seller@example.com")
	name := "Robin Seller"
	profiles.add("user:seller", model.SubscriptionNone).FullName = &name

	p := buyNowListing("products:1", "user:seller", model.ListingStatusApproved)
	n.OfferReceived(context.Background(), p, &model.Bid{Amount: 4_000_000})

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, email.TemplateOfferReceived, sent.Template)
	assert.Equal(t, "Robin Seller", sent.Data.Name)
	assert.Equal(t, int64(4_000_000), sent.Data.Amount)
	assert.Equal(t, p.Title, sent.Data.ListingTitle)
}

func TestNotifier_AuctionResult(t *testing.T) {
	n, mailer, users, _ := newTestNotifier(false)
	users.add("user:seller", "seller@example.com")
	users.add("user:buyer", "buyer@example.com")
	p := auctionListing("products:1", "user:seller", model.ListingStatusUnderOffer)

	n.AuctionResult(context.Background(), p, &model.Bid{BuyerID: "user:buyer", Amount: 700_000})
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, sentEmail{
		To:       "buyer@example.com",
		Template: email.TemplateAuctionWon,
		Data: email.Data{
			Name:         "there",
			ListingTitle: p.Title,
			Amount:       700_000,
			ActionURL:    "https://exitlane.test/dashboard/deals",
		},
	}, mailer.sent[0])
	assert.Equal(t, email.TemplateAuctionSold, mailer.sent[1].Template)
	assert.Equal(t, "seller@example.com", mailer.sent[1].To)

	n.AuctionResult(context.Background(), p, nil)
	require.Len(t, mailer.sent, 3)
	assert.Equal(t, email.TemplateAuctionUnsold, mailer.sent[2].Template)
	assert.Equal(t, "seller@example.com", mailer.sent[2].To)
}

func TestNotifier_UnknownRecipientSkipped(t *testing.T) {
	n, mailer, _, _ := newTestNotifier(false)

	n.OfferAccepted(context.Background(), buyNowListing("products:1", "user:seller", model.ListingStatusUnderOffer), &model.Bid{BuyerID: "user:ghost"})
	assert.Empty(t, mailer.sent)
}

func TestNotifier_AsyncOutlivesRequest(t *testing.T) {
	n, mailer, users, _ := newTestNotifier(true)
	users.add("user:seller", "seller@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	n.ListingReviewed(ctx, buyNowListing("products:1", "user:seller", model.ListingStatusApproved))
	cancel()
	n.Wait()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, email.TemplateListingApproved, mailer.sent[0].Template)
}

func TestNotifier_NilIsSilent(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.Welcome(context.Background(), &model.User{Email: "x@example.com"}, "")
	})
}
