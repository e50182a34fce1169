package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/forgo/exitlane/api/internal/metrics"
	"github.com/forgo/exitlane/api/internal/payments"
)

// WebhookService applies verified payment processor events
type WebhookService struct {
	gateway  payments.Gateway
	escrow   *EscrowService
	checkout *CheckoutService
}

// NewWebhookService creates a new webhook service
func NewWebhookService(gateway payments.Gateway, escrow *EscrowService, checkout *CheckoutService) *WebhookService {
	if gateway == nil {
		gateway = payments.Disabled{}
	}
	return &WebhookService{gateway: gateway, escrow: escrow, checkout: checkout}
}

// HandleStripe verifies the signature and dispatches the event.
// Unknown event types are acknowledged and ignored.
func (s *WebhookService) HandleStripe(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	handled, err := s.dispatch(ctx, event)
	metrics.RecordWebhook(event.Type, handled && err == nil)
	if err != nil {
		slog.Error("webhook handling failed", "event_id", event.ID, "type", event.Type, "error", err)
		return err
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *payments.WebhookEvent) (bool, error) {
	switch event.Type {
	case "payment_intent.succeeded",
		"payment_intent.amount_capturable_updated",
		"payment_intent.requires_action",
		"payment_intent.payment_failed",
		"payment_intent.canceled":
		return true, s.escrow.ApplyIntentByID(ctx, intentFromEvent(event.Object))

	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return true, s.checkout.CompleteCheckout(ctx, sessionFromEvent(event.Object))

	case "checkout.session.expired":
		return true, s.checkout.ExpireCheckout(ctx, sessionFromEvent(event.Object))

	case "customer.subscription.updated", "customer.subscription.deleted":
		change := SubscriptionChange{
			SubscriptionID: gjson.GetBytes(event.Object, "id").String(),
			CustomerID:     expandableID(gjson.GetBytes(event.Object, "customer")),
			Status:         gjson.GetBytes(event.Object, "status").String(),
			PeriodEnd:      unixTime(gjson.GetBytes(event.Object, "current_period_end")),
			Deleted:        event.Type == "customer.subscription.deleted",
		}
		return true, s.checkout.ApplySubscriptionChange(ctx, change)

	case "charge.dispute.created":
		intentID := expandableID(gjson.GetBytes(event.Object, "payment_intent"))
		if intentID == "" {
			return false, nil
		}
		return true, s.escrow.MarkDisputed(ctx, intentID)
	}
	return false, nil
}

func intentFromEvent(obj []byte) *payments.Intent {
	return &payments.Intent{
		ID:               gjson.GetBytes(obj, "id").String(),
		ClientSecret:     gjson.GetBytes(obj, "client_secret").String(),
		Status:           payments.IntentStatus(gjson.GetBytes(obj, "status").String()),
		Amount:           gjson.GetBytes(obj, "amount").Int(),
		AmountCapturable: gjson.GetBytes(obj, "amount_capturable").Int(),
		AmountReceived:   gjson.GetBytes(obj, "amount_received").Int(),
		Currency:         gjson.GetBytes(obj, "currency").String(),
		Metadata:         stringMap(gjson.GetBytes(obj, "metadata")),
		LastError:        gjson.GetBytes(obj, "last_payment_error.message").String(),
	}
}

func sessionFromEvent(obj []byte) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:                gjson.GetBytes(obj, "id").String(),
		URL:               gjson.GetBytes(obj, "url").String(),
		Mode:              payments.CheckoutMode(gjson.GetBytes(obj, "mode").String()),
		Status:            gjson.GetBytes(obj, "status").String(),
		PaymentStatus:     gjson.GetBytes(obj, "payment_status").String(),
		ClientReferenceID: gjson.GetBytes(obj, "client_reference_id").String(),
		CustomerID:        expandableID(gjson.GetBytes(obj, "customer")),
		SubscriptionID:    expandableID(gjson.GetBytes(obj, "subscription")),
		AmountTotal:       gjson.GetBytes(obj, "amount_total").Int(),
		Metadata:          stringMap(gjson.GetBytes(obj, "metadata")),
	}
}

// expandableID reads a field the processor sends as an id or an expanded object
func expandableID(r gjson.Result) string {
	if r.IsObject() {
		return r.Get("id").String()
	}
	return r.String()
}

func stringMap(r gjson.Result) map[string]string {
	out := map[string]string{}
	r.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.String()
		return true
	})
	return out
}

func unixTime(r gjson.Result) *time.Time {
	if !r.Exists() || r.Int() == 0 {
		return nil
	}
	t := time.Unix(r.Int(), 0).UTC()
	return &t
}
