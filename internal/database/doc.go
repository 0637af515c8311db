// Package database provides SurrealDB connectivity for the Rotativos API.
//
// The Database interface keeps repositories independent of the driver:
//
//   - Query: one {status, result} map per statement
//   - QueryOne: first record of the first statement, or ErrNotFound
//   - Execute: mutations whose result is not needed
//
// # Transactions
//
// Transactions are batch-based (see transaction.go). A batch can guard its
// own preconditions and cancel itself:
//
//	batch := database.NewAtomicBatch()
//	batch.Add(`
//	    LET $taken = (SELECT count() AS c FROM rotativo WHERE event = $event GROUP ALL)[0].c ?? 0;
//	    IF $taken >= $cupo { `+database.Abort("cupo_lleno")+` };
//	`, vars)
//	err := batch.Execute(ctx, db)
//	if database.AbortedWith(err, "cupo_lleno") { ... }
//
// # Error Types
//
//   - ErrNotFound: record does not exist
//   - ErrDuplicate: unique index violation
//   - ErrConnection: connection failed
//   - ErrQuery: statement failed
//   - ErrAborted: a batch cancelled itself through Abort
package database
