package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
	"github.com/forgo/exitlane/api/internal/service"
)

func TestMapServiceError_Nil(t *testing.T) {
	t.Parallel()

	if pd := MapServiceError(nil); pd != nil {
		t.Errorf("expected nil, got %+v", pd)
	}
}

func TestMapServiceError_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrRefreshTokenRevoked, http.StatusUnauthorized},
		{service.ErrAdminRequired, http.StatusForbidden},
		{service.ErrNotListingOwner, http.StatusForbidden},
		{service.ErrCannotBidOwn, http.StatusForbidden},
		{service.ErrNotEscrowParty, http.StatusForbidden},
		{service.ErrSubscriptionRequired, http.StatusForbidden},
		{service.ErrNDARequired, http.StatusForbidden},
		{service.ErrListingNotFound, http.StatusNotFound},
		{service.ErrEscrowNotFound, http.StatusNotFound},
		{service.ErrConversationNotFound, http.StatusNotFound},
		{service.ErrBidAlreadyOpen, http.StatusConflict},
		{service.ErrDealStateChanged, http.StatusConflict},
		{service.ErrFeedbackSubmitted, http.StatusConflict},
		{service.ErrBidBelowPrice, http.StatusUnprocessableEntity},
		{service.ErrEscrowState, http.StatusUnprocessableEntity},
		{service.ErrListingNotSubmittable, http.StatusUnprocessableEntity},
		{service.ErrInvalidWebhook, http.StatusBadRequest},
		{payments.ErrNotConfigured, http.StatusServiceUnavailable},
		{service.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()

			pd := MapServiceError(tt.err)
			if pd.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, pd.Status)
			}
		})
	}
}

func TestMapServiceError_WrappedSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("accept bid %s: %w", "bids:1", service.ErrBidNotOpen)
	pd := MapServiceError(err)

	if pd.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, pd.Status)
	}
	if len(pd.Errors) != 1 || pd.Errors[0].Field != "state" {
		t.Errorf("expected state field error, got %+v", pd.Errors)
	}
}

func TestMapServiceError_PaymentError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("place bid: %w", &payments.Error{
		Op:      "create payment intent",
		Code:    "card_declined",
		Message: "Your card was declined.",
		Err:     errors.New("stripe: card declined"),
	})
	pd := MapServiceError(err)

	if pd.Status != http.StatusPaymentRequired {
		t.Fatalf("expected status %d, got %d", http.StatusPaymentRequired, pd.Status)
	}
	if pd.Detail != "Your card was declined." {
		t.Errorf("expected payer message, got %q", pd.Detail)
	}
	if pd.PaymentCode != "card_declined" {
		t.Errorf("expected payment code, got %q", pd.PaymentCode)
	}
}

func TestMapServiceError_FieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err   error
		field string
	}{
		{service.ErrInvalidEmail, "email"},
		{service.ErrInvalidUsername, "username"},
		{service.ErrAvatarType, "avatar"},
		{service.ErrInvalidListingType, "listing_type"},
		{service.ErrBidBelowPrice, "amount"},
	}

	for _, tt := range tests {
		pd := MapServiceError(tt.err)
		if len(pd.Errors) != 1 || pd.Errors[0].Field != tt.field {
			t.Errorf("%v: expected field %q, got %+v", tt.err, tt.field, pd.Errors)
		}
	}
}

func TestMapServiceErrorWithContext_AddsOperationToInternalErrors(t *testing.T) {
	t.Parallel()

	pd := MapServiceErrorWithContext(errors.New("boom"), "place bid")
	if pd.Detail != "place bid: an unexpected error occurred" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}

	pd = MapServiceErrorWithContext(service.ErrBidNotFound, "place bid")
	if pd.Status != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, pd.Status)
	}
	if pd.Code != model.ErrCodeNotFound {
		t.Errorf("expected code %d, got %d", model.ErrCodeNotFound, pd.Code)
	}
}
