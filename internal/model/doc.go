// Package model defines domain entities and request types for the Exitlane API.
//
// Every table of the marketplace has an entity here (Product, Profile, Bid,
// EscrowTransaction, Conversation, InvestorPreferences, ...). Request types
// carry validate struct tags and expose Validate() []FieldError, which runs
// the shared validator and then any cross-field rules.
//
// # Money
//
// All amounts are integer cents in the configured currency:
//
//	AskingPrice int64 `json:"asking_price"` // 125000_00 is $125,000
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type    string    `json:"type"`
//	    Title   string    `json:"title"`
//	    Status  int       `json:"status"`
//	    Detail  string    `json:"detail"`
//	}
package model
