package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/repository"
	"github.com/forgo/exitlane/api/internal/service"
	"github.com/forgo/exitlane/api/internal/testing/fixtures"
	"github.com/forgo/exitlane/api/internal/testing/helpers"
	"github.com/forgo/exitlane/api/internal/testing/testdb"
)

func TestUserRepository_EmailIsUnique(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	existing := f.CreateUser(t)
	helpers.AssertRecordExists(t, tdb.DB, "user", existing.ID)

	users := repository.NewUserRepository(tdb.DB)
	err := users.Create(tdb.Ctx(), &model.User{Email: existing.Email, Role: model.UserRoleUser})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	found, err := users.GetByEmail(tdb.Ctx(), existing.Email)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, found.ID)
}

func TestUserRepository_Delete(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	closed := f.CreateUser(t)
	helpers.AssertRecordExists(t, tdb.DB, "user", closed.ID)

	require.NoError(t, repository.NewUserRepository(tdb.DB).Delete(tdb.Ctx(), closed.ID))
	helpers.AssertRecordNotExists(t, tdb.DB, "user", closed.ID)
}

func TestTestDB_ResetKeepsSchema(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	before := f.CreateUser(t)
	tdb.Reset()
	helpers.AssertRecordNotExists(t, tdb.DB, "user", before.ID)

	// the unique email index survives the reset
	after := f.CreateUser(t)
	users := repository.NewUserRepository(tdb.DB)
	err := users.Create(tdb.Ctx(), &model.User{Email: after.Email, Role: model.UserRoleUser})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestNDARepository_SignIsIdempotent(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	listing := f.CreateListing(t, f.CreateUser(t), func(o *fixtures.ListingOpts) { o.RequiresNDA = true })
	buyer := f.CreateSubscribedBuyer(t)
	ndas := repository.NewNDARepository(tdb.DB)

	first, err := ndas.Sign(tdb.Ctx(), &model.NDASignature{ProductID: listing.ID, UserID: buyer.ID, FullName: "Ada Buyer"})
	require.NoError(t, err)
	second, err := ndas.Sign(tdb.Ctx(), &model.NDASignature{ProductID: listing.ID, UserID: buyer.ID, FullName: "Someone Else"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada Buyer", second.FullName)

	sigs, err := ndas.ListForProduct(tdb.Ctx(), listing.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)

	has, err := ndas.Has(tdb.Ctx(), listing.ID, buyer.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBidRepository_UpdateStatusIsConditional(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	listing := f.CreateListing(t, f.CreateUser(t))
	bid := f.CreateBid(t, listing, f.CreateSubscribedBuyer(t), 14000000)
	assert.True(t, bid.BelowAsking)

	bids := repository.NewBidRepository(tdb.DB)
	changed, err := bids.UpdateStatus(tdb.Ctx(), bid.ID, []model.BidStatus{model.BidStatusPending}, model.BidStatusAccepted)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = bids.UpdateStatus(tdb.Ctx(), bid.ID, []model.BidStatus{model.BidStatusPending}, model.BidStatusWithdrawn)
	require.NoError(t, err)
	assert.False(t, changed, "a bid that left pending must not move again")

	got, err := bids.GetByID(tdb.Ctx(), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BidStatusAccepted, got.Status)
}

func TestFeedbackRepository_OnePerAuthorPerDeal(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	seller := f.CreateUser(t)
	buyer := f.CreateSubscribedBuyer(t)
	listing := f.CreateListing(t, seller)
	escrow := f.CreateEscrow(t, f.CreateBid(t, listing, buyer, listing.AskingPrice), model.EscrowCompleted)

	feedback := repository.NewFeedbackRepository(tdb.DB)
	fb := &model.TransactionFeedback{
		EscrowID:       escrow.ID,
		ProductID:      listing.ID,
		AuthorID:       buyer.ID,
		SubjectID:      seller.ID,
		Role:           model.FeedbackFromBuyer,
		Rating:         5,
		WouldRecommend: true,
	}
	require.NoError(t, feedback.Create(tdb.Ctx(), fb))

	dup := *fb
	dup.Rating = 1
	assert.ErrorIs(t, feedback.Create(tdb.Ctx(), &dup), database.ErrDuplicate)

	count, average, recommend, err := feedback.SummaryForSubject(tdb.Ctx(), seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.InDelta(t, 5.0, average, 0.001)
	assert.Equal(t, 1, recommend)
}

func TestProfileRepository_ExpireSubscriptions(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	lapsed := f.CreateSubscribedBuyer(t)
	current := f.CreateSubscribedBuyer(t)

	profiles := repository.NewProfileRepository(tdb.DB)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, profiles.UpdateSubscription(tdb.Ctx(), lapsed.ID, service.SubscriptionUpdate{
		Status: model.SubscriptionActive,
		EndsOn: &past,
	}))

	n, err := profiles.ExpireSubscriptions(tdb.Ctx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := profiles.GetByUserID(tdb.Ctx(), lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionExpired, got.SubscriptionStatus)

	got, err = profiles.GetByUserID(tdb.Ctx(), current.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, got.SubscriptionStatus)
}

func TestProductRepository_BrowseShowsPublicListingsOnly(t *testing.T) {
	tdb := testdb.New(t)
	defer tdb.Close()
	f := fixtures.New(tdb.DB)

	seller := f.CreateUser(t)
	approved := f.CreateListing(t, seller)
	f.CreateListing(t, seller, fixtures.WithStatus(model.ListingStatusDraft))
	f.CreateListing(t, seller, fixtures.WithStatus(model.ListingStatusPendingReview))

	products := repository.NewProductRepository(tdb.DB)
	page, err := products.Browse(tdb.Ctx(), &model.ListingFilter{}, model.DefaultBrowseLimit, time.Now())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, approved.ID, page[0].ID)
}
