// Package payments wraps the payment processor behind a small Gateway
// interface: manual-capture payment intents for escrow holds, hosted
// checkout sessions for packages and subscriptions, and webhook parsing.
//
// Every processor failure is returned as *Error, which carries the
// processor code and a message suitable for showing to the payer.
package payments

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by the disabled gateway
var ErrNotConfigured = errors.New("payments are not configured")

// IntentStatus mirrors the processor's payment intent states
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// Intent is a payment intent
type Intent struct {
	ID               string
	ClientSecret     string
	Status           IntentStatus
	Amount           int64
	AmountCapturable int64
	AmountReceived   int64
	Currency         string
	Metadata         map[string]string
	LastError        string
}

// CreateIntentParams describes an escrow hold
type CreateIntentParams struct {
	Amount         int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutMode selects one-off payment or recurring subscription checkout
type CheckoutMode string

const (
	CheckoutPayment      CheckoutMode = "payment"
	CheckoutSubscription CheckoutMode = "subscription"
)

// CheckoutParams describes a hosted checkout page.
// Payment mode uses ItemName and UnitAmount; subscription mode uses PriceID.
type CheckoutParams struct {
	Mode              CheckoutMode
	Currency          string
	ItemName          string
	UnitAmount        int64
	PriceID           string
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
	IdempotencyKey    string
}

// CheckoutSession is a hosted checkout page and its outcome
type CheckoutSession struct {
	ID                string
	URL               string
	Mode              CheckoutMode
	Status            string // open, complete, expired
	PaymentStatus     string // paid, unpaid, no_payment_required
	ClientReferenceID string
	CustomerID        string
	SubscriptionID    string
	PeriodEnd         *time.Time
	AmountTotal       int64
	Metadata          map[string]string
}

// IsPaid reports whether the session collected payment
func (s *CheckoutSession) IsPaid() bool {
	return s.Status == "complete" && (s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required")
}

// WebhookEvent is a verified processor event. Object is the raw JSON of data.object.
type WebhookEvent struct {
	ID     string
	Type   string
	Object []byte
}

// Gateway is the payment processor
type Gateway interface {
	CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CaptureIntent(ctx context.Context, id, idempotencyKey string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) (*Intent, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// Disabled is the gateway used when no processor key is configured
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, CreateIntentParams) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GetIntent(context.Context, string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CaptureIntent(context.Context, string, string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CancelIntent(context.Context, string) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CreateCheckoutSession(context.Context, CheckoutParams) (*CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GetCheckoutSession(context.Context, string) (*CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, ErrNotConfigured
}
