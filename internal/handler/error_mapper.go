package handler

import (
	"errors"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/payments"
	"github.com/forgo/exitlane/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	// Processor failures carry a payer-facing message
	var payErr *payments.Error
	if errors.As(err, &payErr) {
		return model.NewPaymentError(payErr.Message, payErr.Code)
	}

	// ===== Authentication Errors → 401 =====
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewUnauthorizedError(err.Error())
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrRefreshTokenRevoked):
		return model.NewUnauthorizedError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrAdminRequired),
		errors.Is(err, service.ErrNotListingOwner),
		errors.Is(err, service.ErrNotBidder),
		errors.Is(err, service.ErrNotEscrowParty),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrCannotBidOwn),
		errors.Is(err, service.ErrCannotMessageSelf):
		return model.NewForbiddenError(err.Error())
	case errors.Is(err, service.ErrSubscriptionRequired):
		return model.NewSubscriptionRequiredError(err.Error())
	case errors.Is(err, service.ErrNDARequired):
		return model.NewNDARequiredError()

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrProfileNotFound):
		return model.NewNotFoundError("profile")
	case errors.Is(err, service.ErrListingNotFound):
		return model.NewNotFoundError("listing")
	case errors.Is(err, service.ErrBidNotFound):
		return model.NewNotFoundError("bid")
	case errors.Is(err, service.ErrEscrowNotFound):
		return model.NewNotFoundError("escrow transaction")
	case errors.Is(err, service.ErrPackageNotFound):
		return model.NewNotFoundError("package")
	case errors.Is(err, service.ErrPlanNotFound):
		return model.NewNotFoundError("subscription plan")
	case errors.Is(err, service.ErrPurchaseNotFound):
		return model.NewNotFoundError("purchase")
	case errors.Is(err, service.ErrConversationNotFound):
		return model.NewNotFoundError("conversation")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrBidAlreadyOpen),
		errors.Is(err, service.ErrAlreadySubscribed),
		errors.Is(err, service.ErrFeedbackSubmitted),
		errors.Is(err, service.ErrDealStateChanged):
		return model.NewConflictError(err.Error())

	// ===== Validation Errors → 400 =====
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong):
		return model.NewValidationError([]model.FieldError{{Field: "password", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidEmail):
		return model.NewValidationError([]model.FieldError{{Field: "email", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidUsername):
		return model.NewValidationError([]model.FieldError{{Field: "username", Message: err.Error()}})
	case errors.Is(err, service.ErrAvatarTooLarge),
		errors.Is(err, service.ErrAvatarType):
		return model.NewValidationError([]model.FieldError{{Field: "avatar", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidListingType):
		return model.NewValidationError([]model.FieldError{{Field: "listing_type", Message: err.Error()}})
	case errors.Is(err, service.ErrBidBelowPrice):
		return model.NewValidationError([]model.FieldError{{Field: "amount", Message: err.Error()}})

	// ===== State Errors → 400 =====
	case errors.Is(err, service.ErrListingNotEditable),
		errors.Is(err, service.ErrListingNotSubmittable),
		errors.Is(err, service.ErrListingNotAvailable),
		errors.Is(err, service.ErrListingNotPending),
		errors.Is(err, service.ErrCannotWithdraw),
		errors.Is(err, service.ErrNDANotRequired),
		errors.Is(err, service.ErrBidNotOpen),
		errors.Is(err, service.ErrBidNotFunded),
		errors.Is(err, service.ErrAuctionNotLive),
		errors.Is(err, service.ErrAuctionBidsAutoAccept),
		errors.Is(err, service.ErrEscrowState),
		errors.Is(err, service.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrFeedbackNotAllowed):
		return model.NewValidationError([]model.FieldError{{Field: "state", Message: err.Error()}})

	// ===== Webhook Errors → 400 =====
	case errors.Is(err, service.ErrInvalidWebhook):
		return model.NewBadRequestError(err.Error())

	// ===== Unconfigured Integrations → 503 =====
	case errors.Is(err, payments.ErrNotConfigured),
		errors.Is(err, service.ErrPlanNotConfigured),
		errors.Is(err, service.ErrStorageUnavailable):
		return model.NewServiceUnavailableError(err.Error())

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
