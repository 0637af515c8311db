// Package repository implements the data access layer for the rotativos API.
//
// Each repository struct handles the records of one concern: events and
// seasons (read-only), rotations, balances, the waiting list, rule
// configuration and the audit log.
//
// # Repository Pattern
//
// All repositories follow a consistent pattern:
//
//   - Constructor function (NewXxxRepository) accepts a database connection
//   - Lookups return (nil, nil) when the record does not exist
//   - SurrealQL queries are used for all database interactions
//   - Results are parsed from the raw response maps into model structs
//
// # Atomic Updates
//
// Counters are changed with single UPDATE statements (balance deltas) and
// multi-record changes go through database.AtomicBatch. Transactions that
// must re-check a condition, such as a promotion re-checking capacity,
// cancel themselves with database.Abort; callers test the reason:
//
//	err := queue.Promote(ctx, model.PromotionWrite{Entry: head, Status: status, Cupo: cupo})
//	if database.AbortedWith(err, model.AbortCupoLleno) {
//	    // still full, the entry stays queued
//	}
//
// # Query Patterns
//
//   - Parameterized queries with $variable syntax
//   - type::record() for record links passed as "table:id" strings
//   - <datetime> casts for times bound as RFC 3339 strings
//   - `$x ?? NONE` for optional fields
package repository
