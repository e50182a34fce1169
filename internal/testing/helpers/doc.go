// Package helpers provides HTTP and assertion helpers for integration tests.
//
// # Tokens
//
//	people := helpers.NewPersonas()
//	jwt := helpers.NewJWTHelper(t)
//	mw := middleware.Auth(jwt) // jwt validates its own tokens
//
// # Requests
//
//	req := helpers.NewRequest(t, http.MethodPost, "/v1/listings/products:1/bids").
//	    WithBody(body).
//	    WithAuth(jwt, people.Buyer).
//	    WithIdempotencyKey("bid-1").
//	    Build()
//
// # Assertions
//
//	helpers.AssertProblemDetails(t, rr, http.StatusForbidden, model.ErrCodeForbidden)
//	helpers.AssertCollectionLen(t, rr, 3)
//	helpers.AssertRecordExists(t, db, "products", listing.ID)
package helpers
