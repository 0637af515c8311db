// Package model defines domain entities and data structures for the Rotativos API.
//
// The model package contains the records the service reads and writes,
// request/response types, and error definitions. Models are used across
// all layers of the application.
//
// # Domain Entities
//
// Core domain entities include:
//
//   - Season, Title, Event: the orchestra schedule (read-only here)
//   - Block: a group of events one member covers as a unit
//   - Member: one musician of the roster
//   - Rotativo: a request to sit out one event
//   - WaitingListEntry: a queued request, ordered FIFO per event
//   - UserSeasonBalance: a member's counters for one season
//   - RuleConfigValue: a persisted override of a rule's settings
//
// # Validation Types
//
// ValidationContext is the immutable snapshot every rule reads.
// ValidationResult is one rule's verdict and ValidationSummary the
// aggregate, carrying the SuggestedAction the request service acts on:
//
//	const (
//	    ActionApprove      SuggestedAction = "APPROVE"
//	    ActionWaitingList  SuggestedAction = "WAITING_LIST"
//	    ActionPendingAdmin SuggestedAction = "PENDING_ADMIN"
//	    ActionReject       SuggestedAction = "REJECT"
//	)
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
