// Package fixtures provides marketplace test data factories.
//
// # Factory Pattern
//
// Create a factory with a database connection:
//
//	f := fixtures.New(tdb.DB)
//
// # Creating Test Data
//
//	seller := f.CreateUser(t)                 // user with a profile
//	buyer := f.CreateSubscribedBuyer(t)        // active buyer subscription
//	listing := f.CreateListing(t, seller)      // approved buy-now listing
//	bid := f.CreateBid(t, listing, buyer, 14000000)
//	escrow := f.CreateEscrow(t, bid, model.EscrowFundsHeld)
//
// # Customization
//
//	draft := f.CreateListing(t, seller, fixtures.WithStatus(model.ListingStatusDraft))
//	auction := f.CreateListing(t, seller, fixtures.WithAuction(start, end, 2000000, 1000000))
//
// Test data is removed with the namespace when the test database is closed.
package fixtures
