// Package service implements the business logic layer for the Exitlane API.
//
// The service package contains the marketplace rules: listing moderation,
// viewer access and redaction, escrow-backed bids, Dutch auction pricing,
// package and subscription checkout, the valuation quiz and buyer matching.
// Services sit between HTTP handlers and data access.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Methods implement business operations and enforce ownership and state rules
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation and request-scoped values
//
// Pure rules such as CurrentPrice, ComputeAccess, CalculateValuation and
// CreatePipelineStages are plain functions so handlers and jobs can use them
// without a service.
//
// # Repository Interfaces
//
// Services define their own repository interfaces, allowing:
//
//   - Easy mocking for unit tests
//   - Decoupling from SurrealDB
//   - Conditional state transitions expressed as from/to status pairs
//
// # Error Handling
//
// Services return domain-specific errors defined as package-level variables:
//
//	var (
//	    ErrListingNotFound = errors.New("listing not found")
//	    ErrNotListingOwner = errors.New("not the owner of this listing")
//	)
//
// Payment processor failures surface as *payments.Error.
//
// # Example Usage
//
//	listings := NewListingService(ListingServiceConfig{
//	    ProductRepo: productRepository,
//	    ProfileRepo: profileRepository,
//	    NDARepo:     ndaRepository,
//	    Views:       viewCounter,
//	})
//	listing, err := listings.CreateListing(ctx, sellerID, &model.CreateListingRequest{
//	    Title:       "Meeting Summarizer",
//	    ListingType: "buy_now",
//	})
package service
