// Package handler provides HTTP request handlers for the Exitlane API.
//
// Handlers are organized by domain: accounts, listings, bids, escrow,
// checkout, messaging, feedback, valuation and matching. Each handler
// struct depends on a small interface naming only the service methods
// it calls, so tests can substitute func-field mocks.
//
// # Handler Pattern
//
//   - Constructor function (NewXxxHandler) accepts the service it fronts
//   - Methods handle specific HTTP endpoints and read path values with r.PathValue
//   - Request bodies are decoded strictly and checked with their Validate method
//   - Service errors are mapped to RFC 9457 Problem Details by MapServiceError
//
// # Response Format
//
//   - WriteData: Single resource with optional HATEOAS links
//   - WriteCollection: List of resources with optional cursor pagination
//   - WriteJSON: Raw JSON response
//   - WriteError: RFC 9457 Problem Details error response
//
// # Authentication
//
// Routes are wrapped with middleware.Auth, middleware.OptionalAuth or
// middleware.AdminAuth in cmd/server. Handlers read the caller with
// middleware.GetUserID and middleware.IsAdmin.
//
// # Example Usage
//
//	listings := NewListingHandler(listingService)
//	mux.HandleFunc("GET /v1/listings", listings.Browse)
//	mux.Handle("POST /v1/listings", auth(http.HandlerFunc(listings.Create)))
package handler
