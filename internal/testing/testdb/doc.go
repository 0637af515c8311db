// Package testdb provides isolated SurrealDB databases for repository tests.
//
// Every call to New connects to a namespace of its own, applies the
// migrations found next to go.mod and registers cleanup on the test:
//
//	func TestRotativo_Create(t *testing.T) {
//	    tdb := testdb.New(t)
//	    repo := repository.NewRotativoRepository(tdb.DB)
//	    ...
//	}
//
// Subtests that share one database call Reset between runs, which empties
// every table listed in Tables.
//
// # Environment
//
//	TEST_DB_HOST, TEST_DB_PORT        - SurrealDB address (localhost:8000)
//	TEST_DB_USER, TEST_DB_PASSWORD    - credentials (root/root)
//	TEST_DB_REQUIRED                  - fail instead of skip when unreachable
//	ROTATIVOS_ROOT                    - repository root, when go.mod cannot be found
package testdb
