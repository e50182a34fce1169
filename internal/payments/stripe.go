package payments

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig configures the Stripe gateway
type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	StatementSuffix string
}

// StripeGateway implements Gateway with the Stripe API
type StripeGateway struct {
	api             *client.API
	webhookSecret   string
	statementSuffix string
}

// NewStripeGateway creates a Stripe-backed gateway
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		api:             client.New(cfg.SecretKey, nil),
		webhookSecret:   cfg.WebhookSecret,
		statementSuffix: cfg.StatementSuffix,
	}
}

// CreateIntent creates a manual-capture payment intent so funds are held, not collected
func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(p.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	if g.statementSuffix != "" {
		params.StatementDescriptorSuffix = stripe.String(g.statementSuffix)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapError("create payment intent", err)
	}
	return toIntent(pi), nil
}

// GetIntent fetches a payment intent
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapError("get payment intent", err)
	}
	return toIntent(pi), nil
}

// CaptureIntent collects held funds
func (g *StripeGateway) CaptureIntent(ctx context.Context, id, idempotencyKey string) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := g.api.PaymentIntents.Capture(id, params)
	if err != nil {
		return nil, wrapError("capture payment intent", err)
	}
	return toIntent(pi), nil
}

// CancelIntent releases held funds
func (g *StripeGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, wrapError("cancel payment intent", err)
	}
	return toIntent(pi), nil
}

// CreateCheckoutSession creates a hosted checkout page
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(p.Mode)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx

	switch p.Mode {
	case CheckoutSubscription:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.PriceID),
			Quantity: stripe.Int64(1),
		}}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		}
	default:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.ItemName),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapError("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

// GetCheckoutSession fetches a checkout session with its subscription expanded
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, wrapError("get checkout session", err)
	}
	return toCheckoutSession(s), nil
}

// ParseWebhook verifies the signature header and decodes the event
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &Error{Op: "verify webhook", Code: "invalid_signature", Message: "invalid webhook signature", Err: err}
	}
	return &WebhookEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Raw,
	}, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:               pi.ID,
		ClientSecret:     pi.ClientSecret,
		Status:           IntentStatus(pi.Status),
		Amount:           pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
		Currency:         string(pi.Currency),
		Metadata:         pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		in.LastError = FriendlyText(string(pi.LastPaymentError.Code) + " " + string(pi.LastPaymentError.DeclineCode) + " " + pi.LastPaymentError.Msg)
	}
	return in
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Mode:              CheckoutMode(s.Mode),
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		cs.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		cs.SubscriptionID = s.Subscription.ID
		if s.Subscription.CurrentPeriodEnd > 0 {
			end := time.Unix(s.Subscription.CurrentPeriodEnd, 0).UTC()
			cs.PeriodEnd = &end
		}
	}
	return cs
}
