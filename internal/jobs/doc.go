// Package jobs implements background work that runs beside the HTTP server.
//
// Each job owns a ticker loop started with Start and stopped with Stop, and
// exposes RunOnce so the admin CLI and tests can trigger a single pass.
//
// # Jobs
//
//   - BalanceReconciler: re-derives every balance row of the active seasons
//     from its approved rotations and repairs counters that drifted.
//
// # Error Handling
//
// Jobs log errors and keep going. A failed row never stops a pass.
package jobs
