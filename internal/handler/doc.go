// Package handler provides HTTP request handlers for the Rotativos API.
//
// The handler package contains the HTTP endpoints organized by domain:
// rotation requests, waiting lists, balances, rule configuration and
// health. Each handler struct wraps a small service interface declared
// next to it, so tests substitute func-field mocks.
//
// # Handler Pattern
//
// All handlers follow a consistent pattern:
//
//   - Constructor function (NewXxxHandler) accepts the service it calls
//   - Methods handle specific HTTP endpoints
//   - Response helpers from response.go standardize output format
//   - Service errors are mapped to RFC 9457 Problem Details by MapServiceError
//
// # Response Format
//
// Handlers use standardized response functions:
//
//   - WriteData: Single resource with optional HATEOAS links
//   - WriteCollection: List of resources with a total
//   - WriteJSON: Raw JSON response
//   - WriteError: RFC 9457 Problem Details error response
//
// # Authorization
//
// The actor middleware puts the member ID and role in the request context.
// Members act on their own records; admins may act on anyone's.
//
// # Example Usage
//
//	h := handler.NewRotativoHandler(rotativoService)
//	mux.Handle("POST /v1/rotativos", middleware.Actor(http.HandlerFunc(h.Request)))
package handler
