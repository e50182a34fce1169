package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
)

// Error is a processor failure with a payer-facing message
type Error struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: %s: %s (%s)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("payments: %s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapError converts a processor error into *Error
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	code := ""
	var se *stripe.Error
	if errors.As(err, &se) {
		code = string(se.Code)
		if se.DeclineCode != "" {
			code = string(se.DeclineCode)
		}
	}
	return &Error{Op: op, Code: code, Message: FriendlyMessage(err), Err: err}
}

type friendlyRule struct {
	needles []string
	message string
}

// Ordered: decline reasons come before the generic decline.
var friendlyRules = []friendlyRule{
	{[]string{"insufficient_funds", "insufficient funds"}, "Your card has insufficient funds. Try a different card."},
	{[]string{"expired_card", "card has expired", "expired card"}, "Your card has expired. Check the expiry date or use another card."},
	{[]string{"incorrect_cvc", "security code", "cvc"}, "The card's security code is incorrect."},
	{[]string{"incorrect_number", "invalid_number", "card number"}, "The card number is incorrect."},
	{[]string{"authentication_required", "authentication", "3d secure"}, "Your bank needs you to confirm this payment. Complete the verification step and try again."},
	{[]string{"card_declined", "declined"}, "Your card was declined. Try a different payment method."},
	{[]string{"processing_error", "processing"}, "We couldn't process your card. Please try again in a moment."},
	{[]string{"rate_limit", "too many requests"}, "Too many payment attempts. Please wait a minute and try again."},
	{[]string{"amount_too_small"}, "The amount is below the minimum we can charge."},
	{[]string{"timeout", "deadline exceeded", "network", "connection"}, "We couldn't reach the payment processor. Check your connection and try again."},
	{[]string{"not configured"}, "Payments are temporarily unavailable."},
}

const defaultFriendly = "Payment failed. Please try again or use a different card."

// FriendlyMessage turns a processor error into text for the payer.
// It matches on the processor code, decline code and message.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	var haystack strings.Builder
	var se *stripe.Error
	if errors.As(err, &se) {
		haystack.WriteString(string(se.Code))
		haystack.WriteString(" ")
		haystack.WriteString(string(se.DeclineCode))
		haystack.WriteString(" ")
		haystack.WriteString(se.Msg)
		haystack.WriteString(" ")
	}
	haystack.WriteString(err.Error())

	return FriendlyText(haystack.String())
}

// FriendlyText maps a raw processor message to payer-facing text
func FriendlyText(raw string) string {
	lower := strings.ToLower(raw)
	for _, rule := range friendlyRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.message
			}
		}
	}
	return defaultFriendly
}
