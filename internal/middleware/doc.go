// Package middleware provides HTTP middleware for the Rotativos API.
//
// The middleware package contains reusable middleware components for
// actor identification, authorization, rate limiting, and request processing.
//
// # Available Middleware
//
// Core middleware components:
//
//   - Actor: reads the member identity set by the gateway
//   - RequireAdmin: rejects non-admin actors with 403
//   - RateLimit: per-member token bucket on the rule-pipeline endpoints
//   - Idempotency: replays the stored response of a repeated POST
//   - RequestID, Logger, Recovery, CORS, Compress: request plumbing
//
// # Actor
//
// Authentication happens upstream. The gateway forwards the member as
// X-User-ID and the role as X-User-Role; a request without X-User-ID is
// rejected with 401:
//
//	mux.Handle("GET /v1/rules", middleware.Actor(middleware.RequireAdmin(h)))
//
// Handlers read the actor through helper functions:
//
//	userID := middleware.GetUserID(r.Context())
//	if !middleware.IsAdmin(r.Context()) { ... }
//
// # Idempotency
//
// A POST carrying an Idempotency-Key header is executed once per actor,
// key, path and body. Concurrent duplicates wait for the first response;
// later duplicates get it replayed with X-Idempotency-Replayed: true.
//
// # Composition
//
// Chain applies middlewares in order, the first one outermost:
//
//	h := middleware.Chain(mux, middleware.RequestID, middleware.Logger, middleware.Recovery)
package middleware
