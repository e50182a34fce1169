package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
)

type webhookFixture struct {
	deals     *dealFixture
	purchases *mockPurchaseRepo
	svc       *WebhookService
}

func newWebhookFixture() *webhookFixture {
	deals := newDealFixture()
	purchases := newMockPurchaseRepo()
	listings := NewListingService(ListingServiceConfig{ProductRepo: deals.products, ProfileRepo: deals.profiles})
	listings.now = fixedClock
	checkout := NewCheckoutService(CheckoutServiceConfig{
		ProductRepo:  deals.products,
		PurchaseRepo: purchases,
		ProfileRepo:  deals.profiles,
		UserRepo:     deals.users,
		Listings:     listings,
		Gateway:      deals.gateway,
		Catalog:      mustCatalog(),
	})
	checkout.now = fixedClock
	return &webhookFixture{
		deals:     deals,
		purchases: purchases,
		svc:       NewWebhookService(deals.gateway, deals.escrow, checkout),
	}
}

func (f *webhookFixture) deliver(t *testing.T, eventType, object string) error {
	t.Helper()
	f.deals.gateway.webhookEvent = &payments.WebhookEvent{ID: "evt_1", Type: eventType, Object: []byte(object)}
	return f.svc.HandleStripe(context.Background(), []byte(`{}`), "t=1,v1=sig")
}

func TestHandleStripe_BadSignature(t *testing.T) {
	f := newWebhookFixture()
	f.deals.gateway.webhookErr = errors.New("signature mismatch")

	err := f.svc.HandleStripe(context.Background(), []byte(`{}`), "bad")
	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestHandleStripe_NotConfigured(t *testing.T) {
	svc := NewWebhookService(nil, nil, nil)

	err := svc.HandleStripe(context.Background(), []byte(`{}`), "sig")
	assert.ErrorIs(t, err, payments.ErrNotConfigured)
	assert.NotErrorIs(t, err, ErrInvalidWebhook)
}

func TestHandleStripe_UnknownEventIgnored(t *testing.T) {
	f := newWebhookFixture()
	assert.NoError(t, f.deliver(t, "invoice.finalized", `{"id":"in_1"}`))
}

func TestHandleStripe_IntentEvents(t *testing.T) {
	f := newWebhookFixture()
	f.deals.products.put(buyNowListing("products:1", "user:seller", model.ListingStatusApproved))
	offer := placeBid(t, f.deals, "user:buyer", "products:1", 5_000_000)
	id := offer.Escrow.PaymentIntentID

	require.NoError(t, f.deliver(t, "payment_intent.amount_capturable_updated",
		fmt.Sprintf(`{"id":%q,"status":"requires_capture","amount":5150000,"metadata":{"product_id":"products:1"}}`, id)))
	assert.Equal(t, model.EscrowFundsHeld, f.deals.escrows.escrows[offer.Escrow.ID].Status)

	require.NoError(t, f.deliver(t, "charge.dispute.created",
		fmt.Sprintf(`{"id":"dp_1","payment_intent":{"id":%q,"object":"payment_intent"}}`, id)))
	assert.Equal(t, model.EscrowDisputed, f.deals.escrows.escrows[offer.Escrow.ID].Status)
}

func TestHandleStripe_PaymentFailed(t *testing.T) {
	f := newWebhookFixture()
	f.deals.products.put(buyNowListing("products:1", "user:seller", model.ListingStatusApproved))
	offer := placeBid(t, f.deals, "user:buyer", "products:1", 5_000_000)

	require.NoError(t, f.deliver(t, "payment_intent.payment_failed", fmt.Sprintf(
		`{"id":%q,"status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`,
		offer.Escrow.PaymentIntentID)))

	assert.Equal(t, model.EscrowPaymentFailed, f.deals.escrows.escrows[offer.Escrow.ID].Status)
	assert.Equal(t, model.BidStatusExpired, f.deals.bids.bids[offer.Bid.ID].Status)
}

func TestHandleStripe_DisputeWithoutIntent(t *testing.T) {
	f := newWebhookFixture()
	assert.NoError(t, f.deliver(t, "charge.dispute.created", `{"id":"dp_1"}`))
}

func TestHandleStripe_CheckoutCompleted(t *testing.T) {
	f := newWebhookFixture()
	f.deals.products.put(buyNowListing("products:1", "user:seller", model.ListingStatusDraft))
	session := "cs_hook"
	f.purchases.purchases["package_purchases:1"] = &model.PackagePurchase{
		ID:                "package_purchases:1",
		ProductID:         "products:1",
		SellerID:          "user:seller",
		Package:           model.PackageType("featured"),
		Status:            model.PurchasePending,
		CheckoutSessionID: &session,
	}

	require.NoError(t, f.deliver(t, "checkout.session.completed",
		`{"id":"cs_hook","mode":"payment","status":"complete","payment_status":"paid","metadata":{"kind":"package","purchase_id":"package_purchases:1"}}`))

	assert.Equal(t, model.PurchasePaid, f.purchases.purchases["package_purchases:1"].Status)
	p := f.deals.products.stored("products:1")
	assert.True(t, p.Featured)
	assert.Equal(t, model.ListingStatusPendingReview, p.Status)
}

func TestHandleStripe_CheckoutExpired(t *testing.T) {
	f := newWebhookFixture()
	session := "cs_hook"
	f.purchases.purchases["package_purchases:1"] = &model.PackagePurchase{
		ID:                "package_purchases:1",
		Status:            model.PurchasePending,
		CheckoutSessionID: &session,
	}

	require.NoError(t, f.deliver(t, "checkout.session.expired", `{"id":"cs_hook","mode":"payment","status":"expired"}`))
	assert.Equal(t, model.PurchaseCancelled, f.purchases.purchases["package_purchases:1"].Status)
}

func TestHandleStripe_SubscriptionCheckout(t *testing.T) {
	f := newWebhookFixture()
	f.deals.profiles.add("user:buyer", model.SubscriptionNone)

	require.NoError(t, f.deliver(t, "checkout.session.completed",
		`{"id":"cs_sub","mode":"subscription","status":"complete","payment_status":"paid","client_reference_id":"user:buyer",`+
			`"customer":"cus_9","subscription":{"id":"sub_9","object":"subscription"},"metadata":{"plan":"buyer_annual"}}`))

	p := f.deals.profiles.profiles["user:buyer"]
	assert.Equal(t, model.SubscriptionActive, p.SubscriptionStatus)
	assert.Equal(t, "cus_9", *p.StripeCustomerID)
	assert.Equal(t, "sub_9", *p.StripeSubscriptionID)
	assert.Equal(t, "buyer_annual", *p.SubscriptionPlan)
}

func TestHandleStripe_SubscriptionLifecycle(t *testing.T) {
	f := newWebhookFixture()
	p := f.deals.profiles.add("user:buyer", model.SubscriptionActive)
	sub := "sub_9"
	p.StripeSubscriptionID = &sub

	periodEnd := testNow.AddDate(0, 1, 0)
	require.NoError(t, f.deliver(t, "customer.subscription.updated",
		fmt.Sprintf(`{"id":"sub_9","customer":"cus_9","status":"past_due","current_period_end":%d}`, periodEnd.Unix())))
	assert.Equal(t, model.SubscriptionPastDue, p.SubscriptionStatus)
	require.NotNil(t, p.SubscriptionEndsOn)
	assert.True(t, periodEnd.Equal(*p.SubscriptionEndsOn))

	require.NoError(t, f.deliver(t, "customer.subscription.deleted", `{"id":"sub_9","status":"canceled"}`))
	assert.Equal(t, model.SubscriptionCancelled, p.SubscriptionStatus)
}

func TestWebhookObjectHelpers(t *testing.T) {
	t.Parallel()

	in := intentFromEvent([]byte(`{"id":"pi_1","status":"succeeded","amount":100,"amount_received":100,"metadata":{"a":"1","b":"2"}}`))
	assert.Equal(t, "pi_1", in.ID)
	assert.Equal(t, payments.IntentSucceeded, in.Status)
	assert.Equal(t, int64(100), in.AmountReceived)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, in.Metadata)
	assert.Empty(t, in.LastError)

	s := sessionFromEvent([]byte(`{"id":"cs_1","customer":{"id":"cus_1"},"subscription":"sub_1"}`))
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.Equal(t, "sub_1", s.SubscriptionID)
	assert.Empty(t, s.Metadata)

	assert.Nil(t, unixTime(gjson.Parse(`{}`).Get("current_period_end")))
	end := unixTime(gjson.Parse(`{"current_period_end":1767225600}`).Get("current_period_end"))
	require.NotNil(t, end)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *end)
}
