package database

// Batch transactions
//
// SurrealDB over the RPC connection has no interactive transactions, so
// every pattern here is BATCH-BASED: statements accumulate in memory and are
// sent in one BEGIN TRANSACTION / COMMIT TRANSACTION block.
//
// # AtomicBatch
//
// Fluent API for a handful of statements that must succeed together:
//
//	err := database.NewAtomicBatch().
//	    Add("UPDATE type::record($id) SET status = $status", vars).
//	    Add("DELETE type::record($entry)", vars2).
//	    Execute(ctx, db)
//
// # TxBuilder
//
// Lower-level builder that namespaces variables ($id -> $v1_id) so that
// statements from different sources cannot collide, and can add raw
// statements such as LET guards or database.Abort THROWs.
//
// A statement may THROW through database.Abort to cancel the whole block;
// the caller sees an error matching ErrAborted.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// TxBuilder builds atomic transaction queries with automatic variable namespacing.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	varCounter uint64
}

// NewTxBuilder creates a new transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{
		statements: make([]string, 0),
		vars:       make(map[string]interface{}),
	}
}

// Add adds a statement, renaming its variables to unique names.
// It returns the mapping from original to namespaced variable names.
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) map[string]string {
	// longest names first so $event is never substituted inside $event_id
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	varMapping := make(map[string]string, len(names))
	placeholders := make(map[string]string, len(names))
	newQuery := query
	for i, name := range names {
		counter := atomic.AddUint64(&tb.varCounter, 1)
		newName := fmt.Sprintf("v%d_%s", counter, name)
		// two-phase replace keeps already substituted names untouched
		placeholder := fmt.Sprintf("\x00%d\x00", i)
		newQuery = strings.ReplaceAll(newQuery, "$"+name, placeholder)
		placeholders[placeholder] = "$" + newName
		tb.vars[newName] = vars[name]
		varMapping[name] = newName
	}
	for placeholder, replacement := range placeholders {
		newQuery = strings.ReplaceAll(newQuery, placeholder, replacement)
	}

	tb.statements = append(tb.statements, newQuery)
	return varMapping
}

// AddRaw adds a raw statement without variable substitution
func (tb *TxBuilder) AddRaw(query string) {
	tb.statements = append(tb.statements, query)
}

// Len returns the number of queued statements
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the complete transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction executes a transaction built with TxBuilder
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}

	return db.Query(ctx, query, vars)
}

// AtomicBatch provides a simpler API for batch operations that should be atomic
type AtomicBatch struct {
	builder *TxBuilder
}

// NewAtomicBatch creates a new atomic batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{builder: NewTxBuilder()}
}

// Add adds a query to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.builder.Add(query, vars)
	return ab
}

// AddRaw adds a statement without variables, such as a guard
func (ab *AtomicBatch) AddRaw(query string) *AtomicBatch {
	ab.builder.AddRaw(query)
	return ab
}

// Execute runs all queries as a single transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	_, err := ExecuteTransaction(ctx, db, ab.builder)
	return err
}

// Len returns the number of queries in the batch
func (ab *AtomicBatch) Len() int {
	return ab.builder.Len()
}
