package database

import (
	"context"
	"errors"
	"strings"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique index violation (e.g. a member queued twice for an event).
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, invalid reference, etc.).
	ErrQuery = errors.New("query error")

	// ErrAborted indicates a transaction cancelled itself with a THROW built by Abort.
	ErrAborted = errors.New("transaction aborted")
)

// abortPrefix tags THROW messages raised by Abort so they can be told apart
// from engine errors.
const abortPrefix = "rotativos-abort:"

// Abort returns a SurrealQL THROW statement carrying reason.
func Abort(reason string) string {
	return `THROW "` + abortPrefix + reason + `"`
}

// AbortedWith reports whether err is an aborted transaction with the given reason.
func AbortedWith(err error, reason string) bool {
	return err != nil && errors.Is(err, ErrAborted) && strings.Contains(err.Error(), abortPrefix+reason)
}

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

// Transaction represents a batch transaction. Statements are queued and
// sent together on Commit.
type Transaction interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
	Commit() error
	Rollback() error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}
