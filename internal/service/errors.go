package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 128 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrAdminRequired      = errors.New("admin role required")
)

// ===== Token Errors =====
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ===== Profile Errors =====
var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 3-20 characters of lowercase letters, numbers or underscores")
	ErrAvatarTooLarge     = errors.New("avatar exceeds maximum size")
	ErrAvatarType         = errors.New("avatar must be a png, jpeg, webp or gif image")
	ErrStorageUnavailable = errors.New("file storage is not configured")
)

// ===== Listing Errors =====
var (
	ErrListingNotFound       = errors.New("listing not found")
	ErrNotListingOwner       = errors.New("not the owner of this listing")
	ErrListingNotEditable    = errors.New("listing cannot be edited in its current status")
	ErrListingNotSubmittable = errors.New("listing cannot be submitted for review in its current status")
	ErrListingNotAvailable   = errors.New("listing is not open for offers")
	ErrCannotWithdraw        = errors.New("listing cannot be withdrawn in its current status")
	ErrInvalidListingType    = errors.New("listing type cannot be changed after creation")
	ErrListingNotPending     = errors.New("listing is not pending review")
)

// ===== Access Errors =====
var (
	ErrSubscriptionRequired = errors.New("an active marketplace subscription is required")
	ErrNDARequired          = errors.New("the listing NDA must be signed first")
	ErrNDANotRequired       = errors.New("this listing does not require an NDA")
)

// ===== Bid Errors =====
var (
	ErrBidNotFound           = errors.New("bid not found")
	ErrCannotBidOwn          = errors.New("cannot bid on your own listing")
	ErrBidAlreadyOpen        = errors.New("you already have an open bid on this listing")
	ErrBidBelowPrice         = errors.New("bid is below the current auction price")
	ErrBidNotOpen            = errors.New("bid is no longer open")
	ErrNotBidder             = errors.New("not the bidder")
	ErrAuctionNotLive        = errors.New("auction is not live")
	ErrAuctionBidsAutoAccept = errors.New("auction bids are accepted automatically")
	ErrBidNotFunded          = errors.New("the buyer's funds are not yet held in escrow")
)

// ===== Escrow Errors =====
var (
	ErrEscrowNotFound   = errors.New("escrow transaction not found")
	ErrNotEscrowParty   = errors.New("not a party to this escrow")
	ErrEscrowState      = errors.New("escrow is not in a state that allows this action")
	ErrDealStateChanged = errors.New("deal state changed, reload and try again")
)

// ===== Package and Subscription Errors =====
var (
	ErrPackageNotFound     = errors.New("package not found")
	ErrPlanNotFound        = errors.New("subscription plan not found")
	ErrPlanNotConfigured   = errors.New("subscription plan has no processor price")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrPaymentNotCompleted = errors.New("payment has not completed")
	ErrAlreadySubscribed   = errors.New("already subscribed")
)

// ===== Conversation Errors =====
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant in this conversation")
	ErrCannotMessageSelf    = errors.New("cannot start a conversation on your own listing")
)

// ===== Feedback Errors =====
var (
	ErrFeedbackNotAllowed = errors.New("feedback can only be left on a completed deal you took part in")
	ErrFeedbackSubmitted  = errors.New("feedback already submitted for this deal")
)

// ===== Webhook Errors =====
var (
	ErrInvalidWebhook = errors.New("invalid webhook signature or payload")
)
