// Package repository implements the data access layer for the Exitlane API.
//
// Every repository wraps a database.Database and speaks SurrealQL. One struct
// per table family: users and refresh tokens, profiles, products, bids,
// escrow transactions, conversations and messages, NDA signatures, investor
// preferences, leads, feedback and package purchases.
//
// # Conventions
//
//   - Constructors (NewXxxRepository) take the database connection
//   - Lookups return nil, nil when nothing matches
//   - Database errors are wrapped with the failed operation
//   - Unique index clashes surface as database.ErrDuplicate
//
// # Record links
//
// Relations are stored as record links (seller = type::record($seller_id))
// and renamed on read, so the "seller" column decodes into SellerID. The
// rename maps live next to each repository.
//
// Optional fields are only written when present. Absent values stay NONE
// rather than NULL so IS NONE checks keep working.
//
// # Multi-record transitions
//
// Accepting and completing a deal touch the escrow, the bid and the listing
// together. Those run as a single BEGIN/COMMIT block built with
// database.AtomicBatch, guarded by THROW checks on the current state.
//
//	repo := NewEscrowRepository(db)
//	if err := repo.AcceptDeal(ctx, escrowID, bidID, productID, others); err != nil {
//	    if errors.Is(err, service.ErrDealStateChanged) {
//	        // someone else moved the deal first
//	    }
//	    return err
//	}
package repository
