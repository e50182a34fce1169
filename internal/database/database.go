// Package database provides the database abstraction layer for Exitlane.
//
// The Database interface wraps SurrealDB so repositories never touch the
// driver directly:
//   - Query: Returns every statement result (for SELECT queries returning lists)
//   - QueryOne: Returns the first record of the first statement
//   - Execute: No return value (for CREATE/UPDATE/DELETE mutations)
//
// # Transactions
//
// Transactions are BATCH-BASED, not connection-level. Statements added to a
// Transaction or AtomicBatch accumulate in memory and are sent as one
// BEGIN TRANSACTION / COMMIT TRANSACTION block. Rollback only discards the
// pending statements.
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle missing record
//	}
package database

import (
	"context"
	"errors"
	"time"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique index violation (e.g., duplicate username).
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, invalid reference, etc.).
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a batched database transaction
type Transaction interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
	Commit() error
	Rollback() error
}

// QueryObserver receives the outcome of every round trip to the database.
// op is "query" or "commit".
type QueryObserver func(op string, elapsed time.Duration, err error)

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
	// TLS selects wss:// instead of ws://
	TLS      bool
	Observer QueryObserver
}
