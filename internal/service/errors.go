package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Lookup Errors =====
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrSeasonNotFound   = errors.New("season not found")
	ErrBlockNotFound    = errors.New("block not found")
	ErrRotativoNotFound = errors.New("rotativo not found")
	ErrEntryNotFound    = errors.New("waiting list entry not found")
	ErrMemberNotFound   = errors.New("member not found")
)

// ===== Request Errors =====
var (
	ErrAlreadyRequested = errors.New("member already has an open rotativo for this event")
	ErrBlockMismatch    = errors.New("block does not cover the requested event")
)

// ===== Waiting List Errors =====
var (
	ErrAlreadyQueued = errors.New("member is already on the waiting list for this event")
)

// ===== Transition Errors =====
var (
	ErrInvalidTransition = errors.New("rotativo cannot change from its current status")
	ErrBlockLocked       = errors.New("block has already started")
	ErrBlockTaken        = errors.New("block is assigned to another member")
	ErrEventFull         = errors.New("event has no free seat")
)

// ===== Rule Config Errors =====
var (
	ErrUnknownConfigKey  = errors.New("unknown rule config key")
	ErrInvalidRuleConfig = errors.New("invalid rule config value")
)

// ===== Balance Errors =====
var (
	ErrInvalidManualMax = errors.New("manual max must not be negative")
)
